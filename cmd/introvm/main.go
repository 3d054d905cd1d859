// Command introvm is a small harness around the introspect package:
// it dials a Transport, switches to the process given by -dtb/-kdtb, and runs
// virtual_to_physical or a raw read against it. It is not a debugger
// REPL — enumeration, breakpoints and symbol resolution stay out of
// scope (see spec §1) — it exists to give the library something
// end-to-end runnable, the same way the teacher ships small command
// entry points alongside its library packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wnxd/ntintrospect/introspect"
	"github.com/wnxd/ntintrospect/oracle"
	"github.com/wnxd/ntintrospect/transport"

	introspectimpl "github.com/wnxd/ntintrospect/internal/introspect"
)

var (
	dial    = flag.String("dial", "tcp:127.0.0.1:9700", "transport dial target, scheme:addr")
	dtb     = flag.Uint64("dtb", 0, "user DTB of the target process")
	kdtb    = flag.Uint64("kdtb", 0, "kernel DTB of the target process (defaults to -dtb)")
	vaddr   = flag.Uint64("vaddr", 0, "guest virtual address to translate or read")
	size    = flag.Uint64("size", 0, "bytes to read starting at -vaddr; 0 means virtual_to_physical only")
	timeout = flag.Duration("timeout", 5*time.Second, "transport request timeout")
)

func main() {
	flag.Parse()

	logger := transport.StdLogger{Logger: log.New(os.Stderr, "introvm: ", log.LstdFlags)}

	cfg := introspect.Config{
		DialTarget:     *dial,
		RequestTimeout: *timeout,
		Logger:         logger,
	}

	ctx := context.Background()
	t, err := transport.Dial(ctx, cfg.DialTarget, cfg)
	if err != nil {
		log.Fatalf("dial %s: %v", cfg.DialTarget, err)
	}
	defer t.Close()

	oc := oracle.New()
	core := introspectimpl.New(t, oc, nil, logger)
	defer core.Close()

	userDTB := introspect.DTB(*dtb)
	kernelDTB := introspect.DTB(*kdtb)
	if kernelDTB == 0 {
		kernelDTB = userDTB
	}
	proc := introspect.Process{DTBs: introspect.DTBPair{Kernel: kernelDTB, User: userDTB}}

	scope, err := core.SwitchProcess(proc)
	if err != nil {
		log.Fatalf("switch process: %v", err)
	}
	defer scope.Close()

	va := introspect.VirtAddr(*vaddr)

	if *size == 0 {
		phys, ok, err := core.VirtualToPhysical(ctx, &proc, scope.DTB(), va)
		if err != nil {
			log.Fatalf("virtual_to_physical: %v", err)
		}
		if !ok {
			fmt.Println("no translation")
			return
		}
		fmt.Printf("%#x -> %#x\n", uint64(va), phys)
		return
	}

	dst := make([]byte, *size)
	ok, err := core.Read(ctx, &proc, scope.DTB(), dst, va)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	if !ok {
		fmt.Println("read failed")
		return
	}
	fmt.Printf("% x\n", dst)
}
