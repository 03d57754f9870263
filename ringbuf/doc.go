// Package ringbuf consumes records from a kernel ring buffer map.
//
// The kernel shares three regions with the consumer: a writable page
// holding the consumer position, a read-only page holding the producer
// position, and the read-only data pages. Records are length-prefixed
// and 8-byte aligned; the data area is mapped twice back to back so a
// record wrapping the ring's end reads contiguously.
//
// Exactly one Reader may own a given ring's consumer cursor. A second
// concurrent consumer on the same map corrupts the cursor protocol;
// the caller is responsible for preventing this.
package ringbuf
