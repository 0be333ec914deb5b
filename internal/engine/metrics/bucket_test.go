package metrics

import "testing"

func TestTimeBucketStore_RecordsIntoCorrectBucket(t *testing.T) {
	store := NewTimeBucketStore(10)
	store.Record(0, true, 10)
	store.Record(0, true, 20)
	store.Record(1, false, 0)

	buckets := store.Snapshot()
	if len(buckets) != 2 {
		t.Fatalf("len(buckets) = %d, want 2", len(buckets))
	}
	if buckets[0].Count != 2 || buckets[0].Successes != 2 {
		t.Errorf("bucket 0 = %+v, want Count=2 Successes=2", buckets[0])
	}
	if buckets[1].Count != 1 || buckets[1].Failures != 1 {
		t.Errorf("bucket 1 = %+v, want Count=1 Failures=1", buckets[1])
	}
}

func TestTimeBucketStore_ClampsNegativeIndexToZero(t *testing.T) {
	store := NewTimeBucketStore(10)
	store.Record(-5, true, 10)

	buckets := store.Snapshot()
	if len(buckets) != 1 || buckets[0].Index != 0 {
		t.Fatalf("expected a single bucket at index 0, got %+v", buckets)
	}
}

func TestTimeBucketStore_EvictsOldestBeyondCapacity(t *testing.T) {
	store := NewTimeBucketStore(3)
	for i := int64(0); i < 5; i++ {
		store.Record(i, true, 1)
	}

	buckets := store.Snapshot()
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3", len(buckets))
	}
	if buckets[0].Index != 2 {
		t.Errorf("oldest retained bucket index = %d, want 2", buckets[0].Index)
	}
}
