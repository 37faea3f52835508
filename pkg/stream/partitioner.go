package stream

import "github.com/spaolacci/murmur3"

// Partitioner maps keys to a fixed number of partitions. The same key always
// lands on the same partition for a given partition count.
type Partitioner struct {
	partitions uint32
}

func NewPartitioner(partitions int) Partitioner {
	if partitions < 1 {
		partitions = 1
	}
	return Partitioner{partitions: uint32(partitions)}
}

func (p Partitioner) Partition(key string) int {
	return int(murmur3.Sum32([]byte(key)) % p.partitions)
}

func (p Partitioner) Partitions() int {
	return int(p.partitions)
}
