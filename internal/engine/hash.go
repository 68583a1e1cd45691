package engine

// hashSeed is the fixed non-zero seed the original implementation's
// calcHash starts from. Reproducibility only needs to hold within a single
// run; persistence across restarts is done by path, not by hash.
const hashSeed uint64 = 0xDeadBeef

// HashPath computes the simple reproducible hash used to key by_path_hash:
// h <- (h * 43) xor byte, over the raw bytes of the absolute path.
func HashPath(path string) uint64 {
	h := hashSeed
	for i := 0; i < len(path); i++ {
		h = (h * 43) ^ uint64(path[i])
	}
	return h
}
