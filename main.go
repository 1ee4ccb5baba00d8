// Command chip8 executes CHIP-8 ROMs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/shwnchpl/chip8/emu"
)

func main() {
	log.SetPrefix("chip8: ")
	log.SetFlags(0)

	var (
		cliFlag   = flag.Bool("cli", false, "render to the terminal instead of a window")
		devFlag   = flag.Bool("dev", false, "enable developer mode (live re-build and run an Octo program)")
		debugFlag = flag.Bool("debug", false, "enable debugger (implies -dev)")
		ipfFlag   = flag.Int("ipf", emu.DefaultIPF, "instructions to execute per 60Hz frame")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-cli] <program.ch8 | program.8o>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [-cli] <-dev | -debug> <program.8o>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}

	if *devFlag || *debugFlag {
		if err := devMode(!*cliFlag, *debugFlag, *ipfFlag, flag.Arg(0)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	err := run(flag.Arg(0), !*cliFlag, *ipfFlag)

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func run(romFile string, guiEnabled bool, ipf int) error {
	rom, err := loadROM(romFile)
	if err != nil {
		return err
	}
	r := emu.NewRunner(guiEnabled, false, nil)
	r.IPF = ipf
	return r.Run(rom)
}

// loadROM reads a ROM image, assembling it first if it is Octo source.
func loadROM(romFile string) ([]byte, error) {
	if filepath.Ext(romFile) != ".8o" {
		return os.ReadFile(romFile)
	}
	tmp, err := os.MkdirTemp("", "chip8-build-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)
	out := filepath.Join(tmp, filepath.Base(romFile)+".ch8")
	return devBuild(os.Stderr, romFile, out)
}
