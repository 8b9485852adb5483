// Package arch assembles the build variables CP2K's Makefile include
// mechanism consumes and serializes them into a per-platform arch file.
package arch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"

	"github.com/hpcbuild/cp2kbuild/internal/config"
	"github.com/hpcbuild/cp2kbuild/internal/driver"
	"github.com/hpcbuild/cp2kbuild/internal/errs"
	"github.com/hpcbuild/cp2kbuild/internal/toolchain"
)

// Options maps build variable names to their values. Values may refer
// to other variables with $(NAME); those references are resolved later
// by make, not here.
type Options map[string]string

// Clone returns an independent copy of the mapping.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// PlatformID computes the platform identifier used in arch-file and
// result-directory names for the given toolchain name.
func PlatformID(toolchainName string) string {
	return "Linux-x86-64-" + toolchainName
}

// Result is the outcome of building the option set: the final variable
// mapping plus the literal per-file make rules appended to the arch file.
type Result struct {
	Options      Options
	Instructions string
	PlatformID   string
}

// Builder derives the option set for one build invocation. Each
// configuration stage is a function from the prior options to the next;
// the builder only carries the inputs and the cross-cutting extras
// (libsmm archives, modinc path, make instructions) the stages share.
type Builder struct {
	Env    toolchain.Env
	Tool   toolchain.Descriptor
	Cfg    *config.Config
	Runner *driver.Runner

	openmp       string
	debug        string
	fpic         string
	libsmm       string
	extraDFlags  string
	modincPath   string
	instructions string
}

// Build assembles the complete option mapping: common baseline,
// compiler-family overrides, exactly one math backend, then FFTW,
// LAPACK, ScaLAPACK and LibInt augmentations, finishing with the
// link-group rewrap of LIBS.
func (b *Builder) Build() (*Result, error) {
	if b.Tool.Debug {
		b.debug = "-g"
		log.Infof("debug build")
	}
	if b.Tool.PIC {
		b.fpic = "-fPIC"
		log.Infof("using fPIC")
	}
	if b.Cfg.ExtraCFlags != "" {
		log.Infof("using extra CFLAGS: %s", b.Cfg.ExtraCFlags)
	}
	b.extraDFlags = b.Cfg.ExtraDFlags
	if b.extraDFlags != "" {
		log.Infof("using extra DFLAGS: %s", b.extraDFlags)
	}

	b.probeLibSMM()

	if len(b.Cfg.ModInc) > 0 || b.Cfg.ModIncAll {
		path, err := b.prepModInc()
		if err != nil {
			return nil, err
		}
		b.modincPath = path
	}

	// every CP2K object uses the default rule except these
	b.instructions = "graphcon.o: graphcon.F\n\t$(FC) -c $(FCFLAGS2) $<\n"

	opts, err := b.common()
	if err != nil {
		return nil, err
	}

	switch b.Tool.Family {
	case toolchain.Intel:
		opts, err = b.intel(opts)
	case toolchain.GCC:
		opts = b.gcc(opts)
	default:
		err = errs.Config("don't know how to tweak configuration for compiler family %q", b.Tool.Family)
	}
	if err != nil {
		return nil, err
	}

	switch toolchain.MathBackendOf(b.Env) {
	case toolchain.MKL:
		opts = b.mkl(opts)
	case toolchain.ACML:
		opts = b.acml(opts)
	case toolchain.ATLAS:
		opts = b.atlas(opts)
	}

	if b.Env.HasRoot("FFTW") {
		opts = b.fftw(opts)
	}
	if b.Env.HasRoot("LAPACK") {
		opts = b.lapack(opts)
	}
	if b.Env.HasRoot("SCALAPACK") {
		opts = b.scalapack(opts)
	}

	if b.Cfg.LibInt {
		opts, err = b.libint(opts)
		if err != nil {
			return nil, err
		}
	}

	opts["LIBS"] = RegroupLibs(opts["LIBS"])

	return &Result{
		Options:      opts,
		Instructions: b.instructions,
		PlatformID:   PlatformID(b.Tool.Name),
	}, nil
}

// common builds the baseline variables shared by all toolchains.
func (b *Builder) common() (Options, error) {
	// psmp builds differ in two ways: -automatic becomes the default
	// and some memory-bandwidth optimisation kicks in
	if b.Cfg.Type == "psmp" {
		b.openmp = b.Tool.OpenMPFlag
	}

	optflags, regflags := "OPT", "OPT2"
	if !b.Cfg.TypeOpt {
		optflags, regflags = "NOOPT", "NOOPT"
	}

	if !b.Env.HasMPI2() {
		return nil, errs.Config("CP2K needs MPI-2, no known MPI-2 supporting library loaded")
	}

	return Options{
		"CC":  b.Env.Get("MPICC"),
		"CPP": "",

		"FC": strings.TrimRight(b.Env.Get("MPIF77")+" "+b.openmp, " "),
		"LD": strings.TrimRight(b.Env.Get("MPIF77")+" "+b.openmp, " "),
		"AR": "ar -r",

		"CPPFLAGS": "",

		"FPIC":  b.fpic,
		"DEBUG": b.debug,

		"FCFLAGS":  fmt.Sprintf("$(FCFLAGS%s)", optflags),
		"FCFLAGS2": fmt.Sprintf("$(FCFLAGS%s)", regflags),

		"CFLAGS": fmt.Sprintf(" %s %s $(FPIC) $(DEBUG) %s ",
			b.Env.Get("SOFTVARCPPFLAGS"), b.Env.Get("SOFTVARLDFLAGS"), b.Cfg.ExtraCFlags),
		"DFLAGS": fmt.Sprintf(" -D__parallel -D__BLACS -D__SCALAPACK -D__FFTSG %s", b.extraDFlags),

		"LIBS": b.Env.Get("LIBS"),

		"FCFLAGSNOOPT": "$(DFLAGS) $(CFLAGS) -O0  $(FREE) $(FPIC) $(DEBUG)",
		"FCFLAGSOPT":   "-O2 $(FREE) $(SAFE) $(FPIC) $(DEBUG)",
		"FCFLAGSOPT2":  "-O1 $(FREE) $(SAFE) $(FPIC) $(DEBUG)",
	}, nil
}

// intel layers the Intel-toolchain overrides over the common options.
func (b *Builder) intel(o Options) (Options, error) {
	extrainc := ""
	if b.modincPath != "" {
		extrainc = "-I" + b.modincPath
	}

	o["FREE"] = "-fpp -free"
	// -fp-model precise and -ftz caused problems here in the past
	o["SAFE"] = "-assume protect_parens -no-unroll-aggressive"
	o["INCFLAGS"] = fmt.Sprintf("$(DFLAGS) -I$(INTEL_INC) -I$(INTEL_INCF) %s", extrainc)
	o["LDFLAGS"] = "$(INCFLAGS) -i-static"
	o["OBJECTS_ARCHITECTURE"] = "machine_intel.o"

	o["DFLAGS"] += " -D__INTEL"
	o["FCFLAGSOPT"] += " $(INCFLAGS) -xHOST -heap-arrays 64 -funroll-loops"
	o["FCFLAGSOPT2"] += " $(INCFLAGS) -xHOST -heap-arrays 64"

	b.instructions += "qs_vxc_atom.o: qs_vxc_atom.F\n\t$(FC) -c $(FCFLAGS2) $<\n"

	ifort := b.Env.Version("IFORT")
	switch {
	case ifort == "":
		log.Debugf("SOFTVERSIONIFORT not set, skipping version-specific tweaks")
	case cmpVersion(ifort, "2011.8") >= 0:
		b.instructions += "et_coupling.o: et_coupling.F\n\t$(FC) -c $(FCFLAGS2) $<\n"
		b.instructions += "qs_vxc_atom.o: qs_vxc_atom.F\n\t$(FC) -c $(FCFLAGS2) $<\n"
	case cmpVersion(ifort, "2011") >= 0:
		return nil, errs.Config("CP2K won't build correctly with the Intel v12 compilers before version 2011.8 (found %s)", ifort)
	}

	return o, nil
}

// gcc layers the GCC-toolchain overrides over the common options.
func (b *Builder) gcc(o Options) Options {
	// free-form flags prevent "Unterminated character constant
	// beginning" errors
	o["FREE"] = "-ffree-form -ffree-line-length-none"
	o["LDFLAGS"] = "$(FCFLAGS)"
	o["OBJECTS_ARCHITECTURE"] = "machine_gfortran.o"

	o["DFLAGS"] += " -D__GFORTRAN"
	o["FCFLAGSOPT"] += " $(DFLAGS) $(CFLAGS) -march=native -ffast-math" +
		" -funroll-loops -ftree-vectorize -fmax-stack-var-size=32768"
	o["FCFLAGSOPT2"] += " $(DFLAGS) $(CFLAGS) -march=native"

	return o
}

// mkl configures for the Intel Math Kernel Library.
func (b *Builder) mkl(o Options) Options {
	o["INTEL_INC"] = "$(MKLROOT)/include"
	o["INTEL_INCF"] = "$(INTEL_INC)/fftw"

	o["DFLAGS"] += " -D__FFTW3 -D__FFTMKL"

	extra := ""
	if b.modincPath != "" {
		extra = "-I" + b.modincPath
	}
	o["CFLAGS"] += fmt.Sprintf(" -I$(INTEL_INC) -I$(INTEL_INCF) %s $(FPIC) $(DEBUG)", extra)

	o["LIBS"] += fmt.Sprintf(" %s %s", b.libsmm, b.Env.Get("LIBSCALAPACK"))
	return o
}

// acml configures for the AMD Core Math Library.
func (b *Builder) acml(o Options) Options {
	openmpSuffix := ""
	if b.openmp != "" {
		openmpSuffix = "_mp"
	}

	o["ACML_INC"] = fmt.Sprintf("%s/gfortran64%s/include", b.Env.Root("ACML"), openmpSuffix)
	o["CFLAGS"] += " -I$(ACML_INC) -I$(FFTW_INC)"
	o["DFLAGS"] += " -D__FFTACML"

	blas := strings.ReplaceAll(b.Env.Get("LIBBLAS"), "gfortran64", "gfortran64"+openmpSuffix)
	o["LIBS"] += fmt.Sprintf(" %s %s %s", b.libsmm, b.Env.Get("LIBSCALAPACK"), blas)
	return o
}

// atlas configures for ATLAS BLAS.
func (b *Builder) atlas(o Options) Options {
	o["LIBS"] += fmt.Sprintf(" %s %s", b.libsmm, b.Env.Get("LIBBLAS"))
	return o
}

// fftw configures for FFTW3.
func (b *Builder) fftw(o Options) Options {
	root := b.Env.Root("FFTW")
	o["FFTW_INC"] = root + "/include"  // GCC
	o["FFTW3INC"] = root + "/include"  // Intel
	o["FFTW3LIB"] = root + "/lib"      // Intel

	o["DFLAGS"] += " -D__FFTW3"
	o["LIBS"] += " -lfftw3"
	return o
}

// lapack links the multithreaded LAPACK advertised by the environment.
func (b *Builder) lapack(o Options) Options {
	o["LIBS"] += " " + b.Env.Get("LIBLAPACK_MT")
	return o
}

// scalapack links the ScaLAPACK advertised by the environment.
func (b *Builder) scalapack(o Options) Options {
	o["LIBS"] += " " + b.Env.Get("LIBSCALAPACK")
	return o
}

// libint augments the options for Hartree-Fock exchange via LibInt.
// LibInt 1.x ships three static archives, 2.x a single one; compilers
// without ISO_C_BINDING additionally need a compiled C++ wrapper.
func (b *Builder) libint(o Options) (Options, error) {
	root := b.Env.Root("LIBINT")
	if root == "" {
		return nil, errs.Config("LibInt module not loaded")
	}

	o["DFLAGS"] += " -D__LIBINT"

	wrapper := ""
	if !b.Tool.ISOCBinding {
		o["DFLAGS"] += " -D__HAS_NO_ISO_C_BINDING"
		obj, err := b.buildLibIntWrapper(root)
		if err != nil {
			return nil, err
		}
		wrapper = obj
	}

	ver := b.Env.Version("LIBINT")
	major, _, _ := strings.Cut(ver, ".")
	var libs string
	switch major {
	case "1":
		libs = "$(LIBINTLIB)/libderiv.a $(LIBINTLIB)/libint.a $(LIBINTLIB)/libr12.a"
	case "2":
		libs = "$(LIBINTLIB)/libint2.a"
	default:
		return nil, errs.Config("don't know how to handle libint version %q", ver)
	}
	log.Infof("using LibInt version %s", major)

	o["LIBINTLIB"] = root + "/lib"
	o["LIBS"] += fmt.Sprintf(" -lstdc++ %s %s", libs, wrapper)
	return o, nil
}

// libIntToolsDirs are the locations the wrapper source has lived at
// across CP2K releases, relative to the source root.
var libIntToolsDirs = []string{"libint_tools", "tools/hfx_tools/libint_tools"}

// buildLibIntWrapper compiles libint_cpp_wrapper.cpp with the plain C
// compiler and returns the path of the produced object file.
func (b *Builder) buildLibIntWrapper(libintRoot string) (string, error) {
	var toolsDir string
	for _, rel := range libIntToolsDirs {
		dir := filepath.Join(b.Cfg.StartFrom, rel)
		if isDir(dir) {
			toolsDir = dir
		}
	}
	if toolsDir == "" {
		return "", errs.Config("no libint_tools dir found under %s", b.Cfg.StartFrom)
	}

	args := strings.Fields(b.Env.Get("CFLAGS"))
	args = append(args, "-c", "libint_cpp_wrapper.cpp", "-I"+libintRoot+"/include")
	if out, err := b.Runner.Run(toolsDir, b.Env.Get("CC"), args...); err != nil {
		return "", errs.Process("building the libint wrapper failed: %v\n%s", err, out)
	}
	return filepath.Join(toolsDir, "libint_cpp_wrapper.o"), nil
}

// RegroupLibs strips any existing link-group markers from a library
// list and wraps the whole list in a single start-group/end-group pair,
// so circular static-archive dependencies resolve regardless of order.
// Applying it twice yields the same string as applying it once.
func RegroupLibs(libs string) string {
	libs = strings.ReplaceAll(libs, "-Wl,--start-group", "")
	libs = strings.ReplaceAll(libs, "-Wl,--end-group", "")
	return fmt.Sprintf("-Wl,--start-group %s -Wl,--end-group", strings.TrimSpace(libs))
}

// cmpVersion compares dotted version strings like "2011.8" by semver
// precedence rules. Compiler versions are looser than semver (leading
// zeros as in "11.1.073", four components as in "2011.8.233.1"), so
// both sides are normalized first.
func cmpVersion(a, b string) int {
	return semver.Compare(canonVersion(a), canonVersion(b))
}

// canonVersion truncates a dotted version to three components and
// strips leading zeros from each, yielding a valid semver string.
func canonVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, p := range parts {
		if t := strings.TrimLeft(p, "0"); t != "" {
			parts[i] = t
		} else {
			parts[i] = "0"
		}
	}
	return "v" + strings.Join(parts, ".")
}

func sortedKeys(o Options) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
