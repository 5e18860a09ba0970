// Command treaty lints, exports, checks, and fingerprints contract
// definition files. Diagnostics go to stderr; data output goes to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/reoring/treaty"
	"github.com/reoring/treaty/loader"
)

var logger zerolog.Logger

func main() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "lint":
		os.Exit(lintCmd(os.Args[2:]))
	case "export":
		os.Exit(exportCmd(os.Args[2:]))
	case "check":
		os.Exit(checkCmd(os.Args[2:]))
	case "fingerprint":
		os.Exit(fingerprintCmd(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `treaty manages API contract definition files.

Usage:
  treaty lint <file|dir>...
  treaty export --group <name> <file|dir>...
  treaty check --group <name> --contract <name> [--version N] --data <file> <file|dir>...
  treaty fingerprint <file|dir>...

lint parses and builds every definition, reporting faults (exit 1 on any).
export prints a group's JSON Schema bundle.
check validates a JSON document against one contract (exit 2 when invalid).
fingerprint prints group/name@version with each schema's identity hash.`)
}

func lintCmd(args []string) int {
	fs := pflag.NewFlagSet("lint", pflag.ExitOnError)
	_ = fs.Parse(args)

	paths, err := expandPaths(fs.Args())
	if err != nil {
		logger.Error().Err(err).Msg("resolving contract files")
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "lint: no contract files given")
		return 2
	}

	failed := 0
	for _, path := range paths {
		f, err := loader.Load(path)
		if err == nil {
			err = f.Check()
		}
		if err != nil {
			failed++
			logger.Error().Err(err).Str("file", path).Msg("lint failed")
			continue
		}
		logger.Info().Str("file", path).Str("group", f.Group).
			Int("contracts", len(f.Contracts)).Msg("lint ok")
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func exportCmd(args []string) int {
	fs := pflag.NewFlagSet("export", pflag.ExitOnError)
	group := fs.String("group", "", "contract group to export")
	_ = fs.Parse(args)
	if *group == "" {
		fs.Usage()
		return 2
	}

	reg, err := buildRegistry(fs.Args())
	if err != nil {
		logger.Error().Err(err).Msg("loading contracts")
		return 1
	}
	g, err := reg.Group(*group)
	if err != nil {
		logger.Error().Err(err).Msg("resolving group")
		return 1
	}
	schemas, err := g.JSONSchemas()
	if err != nil {
		logger.Error().Err(err).Msg("exporting schemas")
		return 1
	}
	out, err := gojson.MarshalIndent(schemas, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("encoding schemas")
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func checkCmd(args []string) int {
	fs := pflag.NewFlagSet("check", pflag.ExitOnError)
	group := fs.String("group", "", "contract group")
	contract := fs.String("contract", "", "contract name")
	version := fs.Int("version", 0, "contract version (0 means latest)")
	dataPath := fs.String("data", "", "JSON document to validate, '-' for stdin")
	_ = fs.Parse(args)
	if *group == "" || *contract == "" || *dataPath == "" {
		fs.Usage()
		return 2
	}

	reg, err := buildRegistry(fs.Args())
	if err != nil {
		logger.Error().Err(err).Msg("loading contracts")
		return 1
	}
	var c *treaty.Contract
	if *version > 0 {
		c, err = reg.GetVersion(*group, *contract, *version)
	} else {
		c, err = reg.Get(*group, *contract)
	}
	if err != nil {
		logger.Error().Err(err).Msg("resolving contract")
		return 1
	}

	data, err := readData(*dataPath)
	if err != nil {
		logger.Error().Err(err).Msg("reading document")
		return 1
	}

	verr := c.ValidateFrom(context.Background(), treaty.JSONBytes(data), treaty.ParseOpt{
		Strictness: treaty.Strictness{OnDuplicateKey: treaty.Error},
	})
	if verr == nil {
		logger.Info().Str("contract", c.String()).Msg("document conforms")
		return 0
	}
	iss, ok := treaty.AsIssues(verr)
	if !ok {
		logger.Error().Err(verr).Msg("validation")
		return 1
	}
	enc := gojson.NewEncoder(os.Stdout)
	for _, it := range iss {
		_ = enc.Encode(issueLine{Path: it.Path, Code: it.Code, Message: it.Message})
	}
	return 2
}

func fingerprintCmd(args []string) int {
	fs := pflag.NewFlagSet("fingerprint", pflag.ExitOnError)
	_ = fs.Parse(args)

	reg, err := buildRegistry(fs.Args())
	if err != nil {
		logger.Error().Err(err).Msg("loading contracts")
		return 1
	}
	for _, gname := range reg.Groups() {
		latest, err := reg.List(gname)
		if err != nil {
			logger.Error().Err(err).Msg("listing group")
			return 1
		}
		for _, lc := range latest {
			chain, err := reg.Versions(gname, lc.Name())
			if err != nil {
				logger.Error().Err(err).Msg("listing versions")
				return 1
			}
			for _, c := range chain {
				fmt.Printf("%s %s\n", c, c.Fingerprint())
			}
		}
	}
	return 0
}

type issueLine struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func buildRegistry(args []string) (*treaty.Registry, error) {
	paths, err := expandPaths(args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no contract files given")
	}
	files := make([]*loader.File, 0, len(paths))
	for _, p := range paths {
		f, err := loader.Load(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	reg := treaty.NewRegistry()
	if err := loader.Apply(reg, files...); err != nil {
		return nil, err
	}
	return reg, nil
}

// expandPaths turns file and directory arguments into the flat list of
// contract file paths, directories expanding in name order.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !loader.IsContractFile(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(arg, e.Name()))
		}
	}
	return paths, nil
}

func readData(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
