// Command pyresolve reverse-engineers a CPython interpreter's private
// allocator metadata and type objects from a Linux core dump, without
// needing the debug symbols or version headers usually required to do so.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zhigao/pymortem/corefile"
	"github.com/zhigao/pymortem/pyresolve"
)

var debugLevel = flag.Int("debuglevel", 0, "debug verbosity level")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: pyresolve corefile [executable]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *debugLevel > 0 {
		corefile.Logf = func(verbosity int, format string, args ...interface{}) {
			if verbosity <= *debugLevel {
				log.Printf(format, args...)
			}
		}
	}
	pyresolve.Warnf = func(format string, args ...interface{}) {
		log.Printf("Warning: "+format, args...)
	}

	args := flag.Args()
	if len(args) != 1 && len(args) != 2 {
		usage()
	}
	coreFilename := args[0]

	addrMap, moduleDir, err := corefile.LoadELFCore(coreFilename)
	if err != nil {
		log.Fatalf("loading core file: %v", err)
	}
	if len(args) == 2 {
		if err := corefile.LoadELFExec(args[1], addrMap, moduleDir, args[1]); err != nil {
			log.Fatalf("loading executable: %v", err)
		}
	}
	moduleDir.MarkResolved()

	partition := corefile.NewPartition()
	typeDir := corefile.NewTypeDirectory()
	r := pyresolve.New(moduleDir, addrMap, partition, typeDir)
	r.Resolve()

	report(r)
}

func report(r *pyresolve.Resolver) {
	fmt.Printf("interpreter version:     %s\n", r.VersionTag())
	fmt.Printf("library path:            %s\n", r.LibraryPath())
	fmt.Printf("executable path:         %s\n", r.ExecutablePath())
	fmt.Printf("pointer size:            %d\n", r.PointerSize())

	if r.ArenaStructArray() == 0 {
		fmt.Println("no pymalloc arena table found")
		return
	}
	fmt.Printf("arena struct array:      0x%x .. 0x%x\n", r.ArenaStructArray(), r.ArenaStructArrayLimit())
	fmt.Printf("arena struct count:      %d\n", r.ArenaStructCount())
	fmt.Printf("active arenas:           %d\n", r.NumArenas())
	fmt.Printf("pool size:               0x%x\n", r.PoolSize())
	fmt.Printf("arena size:              0x%x\n", r.ArenaSize())
	fmt.Printf("all arenas aligned:      %v\n", r.AllArenasAreAligned())

	if r.TypeType() == 0 {
		fmt.Println("no fundamental types found")
		return
	}
	fmt.Printf("type object:             0x%x (size 0x%x)\n", r.TypeType(), r.TypeSize())
	fmt.Printf("object type:             0x%x\n", r.ObjectType())
	fmt.Printf("dict type:               0x%x\n", r.DictType())
	fmt.Printf("str type:                0x%x\n", r.StrType())
	fmt.Printf("keys-in-dict offset:     0x%x\n", r.KeysInDict())
	fmt.Printf("cstring-in-str offset:   0x%x\n", r.CstringInStr())

	fmt.Printf("gc header size:          %d\n", r.GarbageCollectionHeaderSize())
	if off := r.CachedKeysInHeapTypeObject(); off != pyresolve.UnknownOffset {
		fmt.Printf("cached-keys offset:      0x%x\n", off)
	}
	lists := r.NonEmptyGarbageCollectionLists()
	fmt.Printf("non-empty gc lists:      %d\n", len(lists))
	for _, head := range lists {
		fmt.Printf("  0x%x\n", head)
	}
}
