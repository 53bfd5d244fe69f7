// Package classify partitions minidump modules into System, GraphicsDriver,
// Application, and ThirdParty categories, the static classifier described
// as component E. Decision order and the built-in tables are fixed; a
// loaded config (pkg/config) may only extend the three named buckets, never
// reorder or remove from them.
package classify

import "strings"

// Category is one of the four module classification buckets.
type Category int

const (
	CategoryThirdParty Category = iota
	CategorySystem
	CategoryGraphicsDriver
	CategoryApplication
)

func (c Category) String() string {
	switch c {
	case CategorySystem:
		return "System"
	case CategoryGraphicsDriver:
		return "GraphicsDriver"
	case CategoryApplication:
		return "Application"
	default:
		return "ThirdParty"
	}
}

// ShouldBlame reports whether a module of this category is eligible to be
// blamed for a crash. Only System is excluded.
func (c Category) ShouldBlame() bool {
	return c != CategorySystem
}

var systemShortNames = map[string]bool{
	"ntdll": true, "kernel32": true, "kernelbase": true, "user32": true, "gdi32": true,
	"gdi32full": true, "msvcrt": true, "ucrtbase": true,
	"ole32": true, "oleaut32": true, "combase": true, "rpcrt4": true,
	"sechost": true, "crypt32": true, "advapi32": true,
	"ws2_32": true, "winhttp": true, "wininet": true, "urlmon": true,
	"shell32": true, "shlwapi": true, "shcore": true, "win32u": true,
	"cfgmgr32": true, "setupapi": true, "wintrust": true, "imagehlp": true, "dbghelp": true,
	"version": true, "psapi": true, "imm32": true, "msctf": true,
	"clr": true, "clrjit": true, "mscorwks": true, "coreclr": true, "mscoreei": true,
	"d3d9": true, "d3d10": true, "d3d10_1": true, "d3d11": true, "d3d12": true,
	"dxgi": true, "d2d1": true, "dwrite": true, "dcomp": true,
	"mf": true, "mfplat": true, "mfreadwrite": true,
	"windowscodecs": true, "propsys": true, "profapi": true, "powrprof": true, "ntmarta": true,
}

var systemPrefixes = []string{"vcruntime", "msvcp", "bcrypt"}

var graphicsDriverShortNames = map[string]bool{
	"igxelp": true, "ig9": true, "igd": true, "igc": true, "igdumdim": true,
	"igdusc64": true, "intelocl64": true, "igdfcl64": true,
	"nvogl": true, "nvd3d": true, "nvwgf2": true, "nvcuda": true, "nvapi": true,
	"nvinit": true, "nvumdshimx": true, "nvldumdx": true, "nvopencl": true,
	"ati": true, "amd": true,
	"vulkan-1": true,
}

var graphicsDriverPrefixes = []string{
	"igxelp", "ig9", "igd", "igc", "igdumdim", "igdusc64", "intelocl64", "igdfcl64",
	"nvogl", "nvd3d", "nvwgf2", "nvcuda", "nvapi", "nvinit", "nvumdshimx", "nvldumdx", "nvopencl",
	"ati", "amd",
}

// Tables holds the built-in classification tables plus any operator
// extensions loaded from config. The built-ins are never removed or
// reordered; Extra* only adds entries.
type Tables struct {
	ExtraSystem         map[string]bool
	ExtraGraphicsDriver map[string]bool
	ExtraApplication    map[string]bool
}

// Default is the classifier with no operator extensions.
var Default = &Tables{}

// Category classifies a module by its full path, following the fixed
// decision order: graphics driver, then system (table, or a
// \windows\system32\, \windows\syswow64\ or \windows\winsxs\ path), then
// application (\program files or \programdata path, or table), then
// third-party.
func (t *Tables) Category(path string) Category {
	lower := strings.ToLower(path)
	short := strings.ToLower(shortName(lower))

	if t.isGraphicsDriver(short) {
		return CategoryGraphicsDriver
	}
	if t.isSystemTable(short) || containsAny(lower, `\windows\system32\`, `\windows\syswow64\`, `\windows\winsxs\`) {
		return CategorySystem
	}
	if containsAny(lower, `\program files`, `\programdata`) || t.isApplication(short) {
		return CategoryApplication
	}
	return CategoryThirdParty
}

// IsSystem reports whether path classifies as System specifically;
// graphics drivers are deliberately excluded even though they typically
// live under \windows\.
func (t *Tables) IsSystem(path string) bool {
	return t.Category(path) == CategorySystem
}

func (t *Tables) isSystemTable(short string) bool {
	if systemShortNames[short] || (t.ExtraSystem != nil && t.ExtraSystem[short]) {
		return true
	}
	for _, p := range systemPrefixes {
		if strings.HasPrefix(short, p) {
			return true
		}
	}
	return false
}

func (t *Tables) isGraphicsDriver(short string) bool {
	if graphicsDriverShortNames[short] || (t.ExtraGraphicsDriver != nil && t.ExtraGraphicsDriver[short]) {
		return true
	}
	for _, p := range graphicsDriverPrefixes {
		if strings.HasPrefix(short, p) {
			return true
		}
	}
	return false
}

func (t *Tables) isApplication(short string) bool {
	return t.ExtraApplication != nil && t.ExtraApplication[short]
}

func shortName(path string) string {
	i := strings.LastIndexAny(path, `\/`)
	base := path
	if i >= 0 {
		base = path[i+1:]
	}
	return strings.TrimSuffix(base, ".dll")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
