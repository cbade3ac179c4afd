package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/xenosgpu/xenos/internal/shader"
	"github.com/xenosgpu/xenos/internal/store"
	"github.com/xenosgpu/xenos/pkg/db/pebble"
	xlog "github.com/xenosgpu/xenos/pkg/log"
)

func loadUcode(filename string) ([]uint32, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if len(raw)%12 != 0 {
		return nil, fmt.Errorf(
			"microcode file length %d is not a multiple of the 12-byte instruction size", len(raw))
	}
	ucode := make([]uint32, len(raw)/4)
	for i := range ucode {
		ucode[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return ucode, nil
}

// main disassembles a Xenos shader microcode dump.
// go run main.go -stage vertex shader.bin
func main() {
	stage := flag.String("stage", "vertex", "shader stage: vertex or pixel")
	dump := flag.String("dump", os.Getenv("XENOS_DUMP_SHADERS"),
		"directory of the shader dump database, empty to disable")
	loglevel := flag.String("loglevel", "info", "log level")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("microcode file is required")
	}

	level, err := xlog.ParseLogLevel(*loglevel)
	if err != nil {
		log.Fatal(err)
	}
	xlog.Init(xlog.Options{LogLevel: level, Type: xlog.ConsoleLogger})

	var shaderType shader.Type
	switch *stage {
	case "vertex":
		shaderType = shader.TypeVertex
	case "pixel":
		shaderType = shader.TypePixel
	default:
		log.Fatalf("unknown shader stage %q", *stage)
	}

	ucode, err := loadUcode(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	sh := shader.NewShader(shaderType, ucode)
	if err := sh.Analyze(); err != nil {
		log.Fatal(err)
	}

	fmt.Print(sh.UcodeDisassembly())

	crm := sh.ConstantRegisterMap()
	xlog.Shader.Info().
		Str("hash", sh.UcodeHash().String()).
		Uint32("cf_pair_bound", sh.CfPairIndexBound()).
		Uint32("register_bound", sh.RegisterStaticAddressBound()).
		Uint32("float_constants", crm.FloatCount).
		Int("vertex_bindings", len(sh.VertexBindings())).
		Int("texture_fetches", len(sh.TextureBindings())).
		Msg("analyzed shader")

	if *dump != "" {
		if err := dumpShader(sh, *dump); err != nil {
			log.Fatal(err)
		}
	}
}

func dumpShader(sh *shader.Shader, path string) error {
	kv, err := pebble.NewPebbleStore(path)
	if err != nil {
		return fmt.Errorf("open dump store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			xlog.Store.Warn().Err(err).Msg("closing dump store")
		}
	}()

	dumps := store.NewShaderDumps(kv)
	if err := dumps.PutShader(sh); err != nil {
		return err
	}
	xlog.Store.Info().Str("hash", sh.UcodeHash().String()).Str("path", path).
		Msg("dumped shader")
	return nil
}
