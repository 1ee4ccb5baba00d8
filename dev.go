package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/shwnchpl/chip8/emu"
)

// devMode watches an Octo source file, re-assembling and re-loading it
// into the running machine whenever it changes. With debug set it also
// runs the interactive debugger, which takes over the terminal.
func devMode(gui, debug bool, ipf int, srcFile string) error {
	srcFile = filepath.Clean(srcFile)
	if !gui && !debug {
		return fmt.Errorf("dev mode without -debug needs the GUI; drop -cli")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(srcFile)); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "chip8-dev-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	romFile := filepath.Join(tmp, filepath.Base(srcFile)+".ch8")

	var (
		state    emu.StateFunc
		dbg      *debugView
		buildOut io.Writer = os.Stderr
	)
	if debug {
		dbg = newDebugView()
		state = dbg.StateFunc
		buildOut = dbg.log
	}
	runner := emu.NewRunner(gui, true, state)
	runner.IPF = ipf
	if dbg != nil {
		dbg.r = runner
		log.SetPrefix("")
		log.SetOutput(dbg.log)
		go func() {
			if err := dbg.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("chip8: ")
			runner.Debug("exit", 0)
		}()
	}

	romCh := make(chan []byte)
	go func() {
		started := false
		build := time.After(1 * time.Millisecond)
		for {
			select {
			case <-build:
				log.Printf("dev: build %s", filepath.Base(srcFile))
				rom, err := devBuild(buildOut, srcFile, romFile)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				if !started {
					log.Printf("dev: start")
					romCh <- rom
					started = true
				} else {
					log.Printf("dev: reset")
					runner.Swap(rom)
				}
			case ev := <-watcher.Event:
				if ev.Name == srcFile && !ev.IsAttrib() {
					build = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			}
		}
	}()
	return runner.Run(<-romCh)
}

// devBuild assembles srcFile to romFile with the Octo assembler and
// returns the ROM image.
func devBuild(out io.Writer, srcFile, romFile string) ([]byte, error) {
	cmd := exec.Command("octo", srcFile, romFile)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("octo: %v", err)
	}
	return os.ReadFile(romFile)
}
