// Package freeze manages the shared freeze-flag file: a JSON object mapping
// freeze-reason keys to booleans. Any true value means "halt all new
// entries". Flags are sticky; this code sets and reads them but never clears
// a flag on its own. Clearing is an operator action.
package freeze

import (
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/statefile"
)

// Well-known flag keys. Other tooling may write its own keys; readers only
// care whether any value is true.
const (
	KeyDoctor     = "doctor_freeze"
	KeyProduction = "production_freeze"
)

// Flags is a point-in-time read of the freeze file.
type Flags map[string]bool

// AnyActive reports whether any freeze reason is set.
func (f Flags) AnyActive() bool {
	for _, v := range f {
		if v {
			return true
		}
	}
	return false
}

// Active returns the keys currently set, for logging.
func (f Flags) Active() []string {
	var keys []string
	for k, v := range f {
		if v {
			keys = append(keys, k)
		}
	}
	return keys
}

// File wraps the freeze-flag file path.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the current flags. A missing file means no freezes; a
// malformed file is logged and read as empty so a corrupt flag file cannot
// be the reason the doctor fails to act. The hosting loop applies its own
// fail-closed policy on top if it wants one.
func (f *File) Load() Flags {
	flags := Flags{}
	if _, err := statefile.Load(f.path, &flags); err != nil {
		observ.LogError("freeze_flags_read_failed", err, map[string]any{"path": f.path})
		return Flags{}
	}
	return flags
}

// Set switches one reason on (read-modify-write, atomic replace). Existing
// keys set by other tooling are preserved.
func (f *File) Set(key string) error {
	flags := f.Load()
	flags[key] = true
	if err := statefile.Save(f.path, flags); err != nil {
		return err
	}
	observ.Log("freeze_flag_set", map[string]any{"key": key, "active": flags.Active()})
	observ.IncCounter("freeze_flags_set_total", map[string]string{"key": key})
	return nil
}
