package processes

import (
	"fmt"
	"testing"
	"time"
)

func TestOutputBufferSplitsLines(t *testing.T) {
	ob := NewOutputBuffer(10)
	fmt.Fprint(ob, "first li")
	fmt.Fprint(ob, "ne\r\nsecond line\nthird")

	lines := ob.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "first line" || lines[1].Text != "second line" {
		t.Errorf("Unexpected lines: %+v", lines)
	}
	if got := ob.String(); got != "first line\nsecond line\nthird" {
		t.Errorf("Unexpected String(): %q", got)
	}
}

func TestOutputBufferCapacity(t *testing.T) {
	ob := NewOutputBuffer(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(ob, "line %d\n", i)
	}

	lines := ob.Lines()
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0].Text != "line 3" || lines[0].ID != 3 {
		t.Errorf("Expected oldest line to be 'line 3' with ID 3, got %+v", lines[0])
	}

	newer := ob.LinesFromID(4)
	if len(newer) != 1 || newer[0].Text != "line 5" {
		t.Errorf("Unexpected LinesFromID(4): %+v", newer)
	}
}

func TestOutputBufferCallback(t *testing.T) {
	ob := NewOutputBuffer(0)
	received := make(chan OutputLine, 1)
	ob.AddCallback(func(line OutputLine) {
		received <- line
	})

	fmt.Fprintln(ob, "hello")

	select {
	case line := <-received:
		if line.Text != "hello" {
			t.Errorf("Expected 'hello', got %q", line.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
}
