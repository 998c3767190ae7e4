package samba

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// Benchmarks for the hot paths of a refresh: parsing show output and
// reconciling group membership.

func BenchmarkParseUserShow(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseUserShow(sampleUserShow); err != nil {
			b.Fatalf("ParseUserShow failed: %v", err)
		}
	}
}

func BenchmarkParsePasswordSettings(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePasswordSettings(samplePasswordSettings); err != nil {
			b.Fatalf("ParsePasswordSettings failed: %v", err)
		}
	}
}

func BenchmarkParseNameList(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "user%04d\n", i)
	}
	raw := sb.String()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if names := ParseNameList(raw); len(names) != 1000 {
			b.Fatalf("expected 1000 names, got %d", len(names))
		}
	}
}

// BenchmarkSetMembers measures membership reconciliation against an
// in-memory domain controller.
func BenchmarkSetMembers(b *testing.B) {
	ctx := context.Background()
	dc := newFakeDC()
	s := dc.session(b)
	d := NewDirectory(nil)

	if _, err := d.AddGroup(ctx, s, &CreateGroupRequest{Name: "bench"}); err != nil {
		b.Fatalf("AddGroup failed: %v", err)
	}

	members := make([]string, 50)
	for i := range members {
		members[i] = fmt.Sprintf("bench-member-%02d", i)
		if _, err := d.AddGroup(ctx, s, &CreateGroupRequest{Name: members[i]}); err != nil {
			b.Fatalf("AddGroup failed: %v", err)
		}
	}

	b.ResetTimer()

	b.Run("Converged", func(b *testing.B) {
		if err := d.SetMembers(ctx, s, "bench", members); err != nil {
			b.Fatalf("SetMembers failed: %v", err)
		}
		for i := 0; i < b.N; i++ {
			if err := d.SetMembers(ctx, s, "bench", members); err != nil {
				b.Fatalf("SetMembers failed: %v", err)
			}
		}
	})

	b.Run("Alternating", func(b *testing.B) {
		halves := [][]string{members[:25], members[25:]}
		for i := 0; i < b.N; i++ {
			if err := d.SetMembers(ctx, s, "bench", halves[i%2]); err != nil {
				b.Fatalf("SetMembers failed: %v", err)
			}
		}
	})
}
