//go:build stave

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
	"github.com/yaklabco/stave/pkg/target"
)

// Default target when running `stave` with no arguments.
var Default = All

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
}

// binaries built from ./cmd.
var binaries = []string{"darkscan", "darkscan-train", "darkscan-eval"}

// All runs the complete build pipeline: lint, test, and build.
func All() error {
	st.Deps(Init)
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Init ensures the module dependencies are up to date.
func Init() error {
	return sh.Run("go", "mod", "tidy")
}

// Build compiles every binary under cmd/.
func Build() error {
	st.Deps(Init)
	st.Deps(Build_Detect, Build_Train, Build_Eval)
	return nil
}

// Build_Detect compiles the darkscan inference binary.
func Build_Detect() error { return buildBinary("darkscan") }

// Build_Train compiles the darkscan-train binary.
func Build_Train() error { return buildBinary("darkscan-train") }

// Build_Eval compiles the darkscan-eval binary.
func Build_Eval() error { return buildBinary("darkscan-eval") }

func buildBinary(name string) error {
	st.Deps(Init)

	out := "bin/" + name
	rebuild, err := target.Glob(out, "**/*.go", "go.mod", "go.sum")
	if err != nil {
		return fmt.Errorf("checking rebuild: %w", err)
	}
	if !rebuild {
		if st.Verbose() {
			fmt.Printf("%s is up to date\n", name)
		}
		return nil
	}

	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", out, "./cmd/"+name)
}

// buildLdflags returns ldflags for version injection.
func buildLdflags() string {
	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	commit, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	date := time.Now().Format(time.RFC3339)

	return fmt.Sprintf(
		"-X main.version=%s -X main.commit=%s -X main.date=%s",
		strings.TrimSpace(version),
		strings.TrimSpace(commit),
		date,
	)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// TestShort runs tests in short mode.
func TestShort() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-short", "-race", "./...")
}

// TestONNX runs the inference tests against the model in DARKSCAN_ONNX_MODEL.
func TestONNX() error {
	if os.Getenv("DARKSCAN_ONNX_MODEL") == "" {
		return fmt.Errorf("DARKSCAN_ONNX_MODEL is not set")
	}
	return sh.RunV("go", "test", "-race", "-v", "./inference/...")
}

// Lint runs golangci-lint on the codebase.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// LintFix runs golangci-lint with auto-fix enabled.
func LintFix() error {
	return sh.RunV("golangci-lint", "run", "--fix", "./...")
}

// Fmt formats all Go code using gofmt and goimports.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("gofmt: %w", err)
	}
	if err := sh.Run("goimports", "-w", "."); err != nil {
		return fmt.Errorf("goimports: %w", err)
	}
	return nil
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build and training outputs.
func Clean() error {
	for _, a := range []string{"bin/", "coverage.out", "coverage.html"} {
		if err := sh.Rm(a); err != nil {
			return fmt.Errorf("removing %s: %w", a, err)
		}
	}
	return nil
}

// Install builds and installs the binaries to GOBIN.
func Install() error {
	st.Deps(Build)

	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return fmt.Errorf("determining GOPATH: %w", err)
		}
		bin = gopath + "/bin"
	}

	for _, name := range binaries {
		dst := bin + "/" + name
		if runtime.GOOS == "windows" {
			dst += ".exe"
		}
		if err := sh.Copy(dst, "bin/"+name); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
		if st.Verbose() {
			fmt.Printf("Installed %s to %s\n", name, dst)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Data namespace for dataset preparation.
type Data st.Namespace

// Merge combines every labeled file under data/raw into data/dataset.csv.
func (Data) Merge() error {
	return sh.RunV("go", "run", "scripts/merge-datasets.go",
		"-in", envOr("DARKSCAN_RAW", "data/raw"),
		"-out", envOr("DARKSCAN_DATA", "data/dataset.csv"),
	)
}

// Train namespace for model training.
type Train st.Namespace

// Run trains a model from DARKSCAN_DATA (or the config in DARKSCAN_CONFIG)
// into DARKSCAN_MODEL.
func (Train) Run() error {
	st.Deps(Build_Train)

	args := []string{"-output", envOr("DARKSCAN_MODEL", "dark_pattern_model")}
	if cfg := os.Getenv("DARKSCAN_CONFIG"); cfg != "" {
		args = append(args, "-config", cfg)
	} else {
		args = append(args, "-data", envOr("DARKSCAN_DATA", "data/dataset.csv"))
	}
	return sh.RunV("./bin/darkscan-train", args...)
}

// Demo trains and then runs detection on a sample paragraph.
func (Train) Demo() error {
	st.Deps(Build_Train)

	return sh.RunV("./bin/darkscan-train",
		"-data", envOr("DARKSCAN_DATA", "data/dataset.csv"),
		"-output", envOr("DARKSCAN_MODEL", "dark_pattern_model"),
		"-demo",
	)
}

// Eval namespace for threshold reports.
type Eval st.Namespace

// Sweep prints the threshold table of DARKSCAN_MODEL over DARKSCAN_EVAL_DATA.
func (Eval) Sweep() error {
	st.Deps(Build_Eval)

	return sh.RunV("./bin/darkscan-eval",
		"-model", envOr("DARKSCAN_MODEL", "dark_pattern_model"),
		"-data", envOr("DARKSCAN_EVAL_DATA", "data/dataset.csv"),
	)
}

// CI runs the full CI pipeline (lint, test, build).
func CI() error {
	st.Deps(Init)
	st.SerialDeps(Lint, Test, Build)
	return nil
}

// Check runs quick validation (vet, lint, short tests).
func Check() error {
	st.Deps(Vet, Lint, TestShort)
	return nil
}

// Coverage generates a coverage report.
func Coverage() error {
	st.Deps(Init)
	if err := sh.RunV("go", "test", "-race", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Tidy runs go mod tidy and verifies the go.sum is clean.
func Tidy() error {
	if err := sh.Run("go", "mod", "tidy"); err != nil {
		return err
	}
	output, err := sh.Output("git", "diff", "--exit-code", "go.sum")
	if err != nil {
		if output != "" {
			return fmt.Errorf("go.sum is not clean:\n%s", output)
		}
	}
	return nil
}
