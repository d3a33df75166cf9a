// Package mvgl reads and writes MDB1 archives, the MVGL container format
// used to ship game assets.
//
// An archive is a fixed-layout header and index followed by one LZ4 block
// per entry. The index holds a binary radix trie over entry paths, a
// fixed-width name table and an offset/size table:
//   - Open parses the index and gives random access to entries
//   - Extract writes every entry (optionally filtered) below a directory
//   - Pack builds an archive from a directory tree of regular files
//
// Entry paths use forward slashes. With image renaming enabled, entries
// stored with the "img" extension are written as "dds" files, and packing
// applies the inverse mapping.
package mvgl
