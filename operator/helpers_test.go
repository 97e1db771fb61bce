package operator

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kbukum/mediaflow/retrievable"
)

func items(n int, typ string) []*retrievable.Retrievable {
	out := make([]*retrievable.Retrievable, n)
	for i := range out {
		out[i] = retrievable.New(typ)
	}
	return out
}

func ids(rs []*retrievable.Retrievable) []uuid.UUID {
	out := make([]uuid.UUID, len(rs))
	for i, r := range rs {
		out[i] = r.ID()
	}
	return out
}

// drain pulls s to exhaustion and returns the elements before Terminal
// along with how many Terminals were seen and whether Terminal came last.
func drain(t *testing.T, ctx context.Context, s Stream) (out []*retrievable.Retrievable, terminals int) {
	t.Helper()
	defer s.Close()
	last := false
	for {
		r, ok, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if !ok {
			break
		}
		if retrievable.IsTerminal(r) {
			terminals++
			last = true
			continue
		}
		last = false
		out = append(out, r)
	}
	if !last {
		t.Fatalf("stream did not end with Terminal")
	}
	return out, terminals
}

func addDescriptor(field string, v retrievable.Value) Func {
	return OneToOne(func(_ context.Context, r *retrievable.Retrievable) (*retrievable.Retrievable, error) {
		r.AddDescriptor(retrievable.NewDescriptor(r.ID(), field, v))
		return r, nil
	})
}
