package quadtree

// CodeIndexPair is the (code, originalIndex) pair sorted by the radix sort,
// per spec §4.4 step 3.
type CodeIndexPair struct {
	Code          uint32
	OriginalIndex uint32
}

const (
	radixBitsPerPass = 8
	radixPasses      = 4
	radixBucketCount = 1 << radixBitsPerPass
)

// RadixSort reorders pairs by Code using a stable, work-group-parallel-style
// LSD radix sort (8 bits per pass), matching spec §4.4 step 3. The host
// implementation here is a sequential reference for the equivalent GPU
// compute pass. It runs 4 passes over OriginalIndex and then 4 over Code;
// since each pass is a stable counting sort, ties on Code end up in
// ascending OriginalIndex order whatever the input order.
func RadixSort(pairs []CodeIndexPair) {
	if len(pairs) < 2 {
		return
	}
	src := pairs
	dst := make([]CodeIndexPair, len(pairs))

	for pass := 0; pass < 2*radixPasses; pass++ {
		shift := uint((pass % radixPasses) * radixBitsPerPass)
		key := func(p CodeIndexPair) uint32 {
			if pass < radixPasses {
				return p.OriginalIndex
			}
			return p.Code
		}
		var counts [radixBucketCount + 1]int

		for _, p := range src {
			bucket := (key(p) >> shift) & (radixBucketCount - 1)
			counts[bucket+1]++
		}
		for i := 0; i < radixBucketCount; i++ {
			counts[i+1] += counts[i]
		}
		offsets := counts
		for _, p := range src {
			bucket := (key(p) >> shift) & (radixBucketCount - 1)
			dst[offsets[bucket]] = p
			offsets[bucket]++
		}
		src, dst = dst, src
	}

	if &src[0] != &pairs[0] {
		copy(pairs, src)
	}
}
