package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeInNaive(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	for _, s := range []string{"2024-03-04T09:00:00", "2024-03-04T09:00", "2024-03-04 09:00"} {
		got, ok := ParseTimeIn(s, loc)
		if !ok {
			t.Fatalf("%s: expected ok", s)
		}
		if got.UTC().Hour() != 12 {
			t.Fatalf("%s: naive time not read in exchange zone: %v", s, got.UTC())
		}
	}
	got, ok := ParseTimeIn("2024-03-04T09:00:00Z", loc)
	if !ok || got.UTC().Hour() != 9 {
		t.Fatalf("explicit zone must win: %v", got)
	}
	if _, ok := ParseTimeIn("yesterday", loc); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseIntDefault(t *testing.T) {
	cases := map[string]int{"": 7, " 42 ": 42, "x": 7, "-3": -3}
	for in, want := range cases {
		if got := ParseIntDefault(in, 7); got != want {
			t.Fatalf("ParseIntDefault(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("kafka-1:9092, kafka-2:9092,, ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected split %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
