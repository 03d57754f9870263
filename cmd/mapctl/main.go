// mapctl creates and inspects pinned BPF maps from a TOML spec file.
// A spec file fully describes one map:
//
//	name = "flow_counts"
//	type = "hash"
//	key_size = 4
//	value_size = 8
//	max_entries = 1024
//
// The kernel does not report a pinned map's spec back through the
// obj-get interface, so every subcommand takes the same spec file the
// map was created from.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/tcassar-diss/rawbpf/bpf"
	"github.com/urfave/cli/v2"
)

var (
	specPath string
	pinPath  string
)

type mapSpecFile struct {
	Name       string `toml:"name"`
	Type       string `toml:"type"`
	KeySize    uint32 `toml:"key_size"`
	ValueSize  uint32 `toml:"value_size"`
	MaxEntries uint32 `toml:"max_entries"`
}

func parseSpec(path string) (bpf.MapSpec, error) {
	var parsed mapSpecFile

	file, err := os.Open(path)
	if err != nil {
		return bpf.MapSpec{}, fmt.Errorf("failed to open spec file: %w", err)
	}
	defer file.Close()

	if _, err := toml.NewDecoder(file).Decode(&parsed); err != nil {
		return bpf.MapSpec{}, fmt.Errorf("failed to decode spec file: %w", err)
	}

	typ, ok := bpf.ParseMapType(parsed.Type)
	if !ok {
		return bpf.MapSpec{}, fmt.Errorf("unknown map type %q", parsed.Type)
	}

	return bpf.MapSpec{
		Name:       parsed.Name,
		Type:       typ,
		KeySize:    parsed.KeySize,
		ValueSize:  parsed.ValueSize,
		MaxEntries: parsed.MaxEntries,
	}, nil
}

func openPinned() (*bpf.Map, error) {
	spec, err := parseSpec(specPath)
	if err != nil {
		return nil, err
	}

	return bpf.LoadPinnedMap(pinPath, spec)
}

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "spec",
			Usage:       "TOML map spec file",
			Required:    true,
			Destination: &specPath,
		},
		&cli.StringFlag{
			Name:        "pin",
			Usage:       "bpffs pin path (e.g. /sys/fs/bpf/flow_counts)",
			Required:    true,
			Destination: &pinPath,
		},
	}

	app := &cli.App{
		Name:  "mapctl",
		Usage: "create and inspect pinned BPF maps",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a map from a spec file and pin it",
				Flags: commonFlags,
				Action: func(cCtx *cli.Context) error {
					spec, err := parseSpec(specPath)
					if err != nil {
						return err
					}

					m, err := bpf.NewMap(spec)
					if err != nil {
						return fmt.Errorf("failed to create map: %w", err)
					}
					defer m.Close()

					if err := m.Pin(pinPath); err != nil {
						return err
					}

					fmt.Printf("created %s map %q, pinned at %s\n", spec.Type, spec.Name, pinPath)

					return nil
				},
			},
			{
				Name:  "dump",
				Usage: "print every entry of a pinned map as hex",
				Flags: commonFlags,
				Action: func(cCtx *cli.Context) error {
					m, err := openPinned()
					if err != nil {
						return err
					}
					defer m.Close()

					n := 0

					it := m.Iterate()
					for it.Next() {
						fmt.Printf("%x = %x\n", it.Key(), it.Value())
						n++
					}

					if err := it.Err(); err != nil {
						return err
					}

					fmt.Printf("%d entries\n", n)

					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "write one entry; key and value are hex strings",
				ArgsUsage: "<key-hex> <value-hex>",
				Flags:     commonFlags,
				Action: func(cCtx *cli.Context) error {
					if cCtx.Args().Len() != 2 {
						return cli.Exit("expected exactly two arguments: key and value", 1)
					}

					key, err := hex.DecodeString(cCtx.Args().Get(0))
					if err != nil {
						return fmt.Errorf("failed to parse key: %w", err)
					}

					value, err := hex.DecodeString(cCtx.Args().Get(1))
					if err != nil {
						return fmt.Errorf("failed to parse value: %w", err)
					}

					m, err := openPinned()
					if err != nil {
						return err
					}
					defer m.Close()

					return m.Update(key, value, bpf.UpdateAny)
				},
			},
			{
				Name:      "del",
				Usage:     "delete one entry; key is a hex string",
				ArgsUsage: "<key-hex>",
				Flags:     commonFlags,
				Action: func(cCtx *cli.Context) error {
					if cCtx.Args().Len() != 1 {
						return cli.Exit("expected exactly one argument: key", 1)
					}

					key, err := hex.DecodeString(cCtx.Args().Get(0))
					if err != nil {
						return fmt.Errorf("failed to parse key: %w", err)
					}

					m, err := openPinned()
					if err != nil {
						return err
					}
					defer m.Close()

					return m.Delete(key)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
