package toolchain

import (
	"os"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
)

// Family identifies the compiler family of the active toolchain.
type Family string

const (
	Intel Family = "Intel"
	GCC   Family = "GCC"
)

// MathBackend identifies which vendor math library backs BLAS/FFT.
// At most one backend drives the build even if several are loaded.
type MathBackend string

const (
	MKL   MathBackend = "MKL"
	ACML  MathBackend = "ACML"
	ATLAS MathBackend = "ATLAS"
	None  MathBackend = "None"
)

// Descriptor describes the compiler toolchain a build runs against.
// It is supplied by the build configuration, not probed from binaries.
type Descriptor struct {
	// Name is the toolchain tag used in the platform identifier
	// (e.g. "ictce" yields Linux-x86-64-ictce).
	Name   string `yaml:"name"`
	Family Family `yaml:"family"`

	Debug bool `yaml:"debug"`
	PIC   bool `yaml:"pic"`

	// OpenMPFlag is the compiler flag enabling OpenMP (-openmp,
	// -fopenmp); only used for psmp builds.
	OpenMPFlag string `yaml:"openmp_flag"`

	// ISOCBinding reports whether the Fortran compiler supports
	// ISO_C_BINDING. Old GCC releases (4.1 era) do not, which forces
	// a small C++ wrapper around LibInt.
	ISOCBinding bool `yaml:"iso_c_binding"`
}

// Validate rejects descriptors this recipe does not know how to
// configure for.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return errs.Config("toolchain name is empty")
	}
	switch d.Family {
	case Intel, GCC:
		return nil
	}
	return errs.Config("don't know how to tweak configuration for compiler family %q", d.Family)
}

// Env is a snapshot of the process environment, taken once per build
// invocation. Loaded software advertises itself through SOFTROOT<NAME>
// and SOFTVERSION<NAME> markers.
type Env map[string]string

// Snapshot captures the current process environment.
func Snapshot() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Get returns the raw value of an environment variable.
func (e Env) Get(key string) string { return e[key] }

// Root returns the install root advertised for the named dependency.
func (e Env) Root(name string) string {
	return e["SOFTROOT"+strings.ToUpper(name)]
}

// HasRoot reports whether the named dependency is loaded.
func (e Env) HasRoot(name string) bool { return e.Root(name) != "" }

// Version returns the version string advertised for the named dependency.
func (e Env) Version(name string) string {
	return e["SOFTVERSION"+strings.ToUpper(name)]
}

// mpi2Libs are the MPI implementations known to provide MPI-2.
var mpi2Libs = []string{"impi", "MVAPICH2", "OpenMPI"}

// HasMPI2 reports whether an MPI-2 capable MPI library is loaded.
// CP2K requires MPI-2 for its parallel builds.
func (e Env) HasMPI2() bool {
	mpi2 := false
	for _, lib := range mpi2Libs {
		if e.HasRoot(lib) {
			mpi2 = true
		} else {
			log.Debugf("MPI-2 supporting MPI library %s not loaded", lib)
		}
	}
	return mpi2
}

// MathBackendOf resolves which math library configures the build.
// MKL wins over ACML, ACML over ATLAS; the rest are ignored even if
// their markers are present.
func MathBackendOf(env Env) MathBackend {
	switch {
	case env.HasRoot("IMKL"):
		return MKL
	case env.HasRoot("ACML"):
		return ACML
	case env.HasRoot("ATLAS"):
		return ATLAS
	}
	return None
}
