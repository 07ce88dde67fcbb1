package interfaces

// CompressorInterface packs ledger snapshots before they hit disk.
type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}
