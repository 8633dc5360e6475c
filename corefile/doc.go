// Package corefile provides read-only access to a process core dump: a
// byte-addressable virtual address space (AddressMap), the set of loaded
// shared modules and their writable data ranges (ModuleDirectory), a
// claim/reservation registry over that address space (Partition), and an
// append-mostly registry of discovered type-object addresses (TypeDirectory).
//
// These four collaborators are the only things a post-mortem resolver such
// as package pyresolve needs from the outside world; corefile exists to
// build them from a real Linux/ELF core file plus its executable, the way
// an external debugger (e.g. gdb) would hand them to an analysis tool.
package corefile
