package workspace

import (
	"os"
	"testing"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

func testRegion() scene.Region {
	return scene.Region{
		Bounds: geometry.Bounds{North: 100, South: 0, East: 100, West: 0},
		Res:    1,
	}
}

func TestRunContextCleanupOrder(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	rc.Defer(func() error { order = append(order, 1); return nil })
	rc.Defer(func() error { order = append(order, 2); return nil })
	rc.Defer(func() error { order = append(order, 3); return nil })
	if err := rc.Close(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("cleanup order = %v, want [3 2 1]", order)
	}
}

func TestRunContextCloseIsIdempotent(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	rc.Defer(func() error { calls++; return nil })
	if err := rc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rc.Close(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("cleanup ran %d times, want 1", calls)
	}
	if _, err := os.Stat(rc.Root); !os.IsNotExist(err) {
		t.Error("run directory still exists after close")
	}
}

func TestAcquireCreatesPrivateDirs(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	iso := NewIsolator(rc, testRegion())
	a, err := iso.Acquire("tile_a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := iso.Acquire("tile_b")
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir == b.Dir {
		t.Error("workspaces share a directory")
	}
	for _, ws := range []*Workspace{a, b} {
		if fi, err := os.Stat(ws.Dir); err != nil || !fi.IsDir() {
			t.Errorf("workspace dir %s missing: %v", ws.Dir, err)
		}
	}
}

func TestAcquireRejectsDuplicateNames(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	iso := NewIsolator(rc, testRegion())
	if _, err := iso.Acquire("tile_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := iso.Acquire("tile_a"); err == nil {
		t.Error("duplicate workspace name accepted")
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	iso := NewIsolator(rc, testRegion())
	ws, err := iso.Acquire("tile_a")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Release(); err != nil {
		t.Fatal(err)
	}
	// A later batch may reuse the name once the workspace is gone.
	if _, err := iso.Acquire("tile_a"); err != nil {
		t.Errorf("released name not reusable: %v", err)
	}
}

func TestRegionIsPrivatePerWorkspace(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	iso := NewIsolator(rc, testRegion())
	ws, err := iso.Acquire("tile_a")
	if err != nil {
		t.Fatal(err)
	}
	ws.Region = ws.Region.ShrinkBy(10)
	if !iso.BaseRegion().Equal(testRegion()) {
		t.Error("workspace region change leaked into the base region")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	rc, err := NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	iso := NewIsolator(rc, testRegion())
	ws, err := iso.Acquire("tile_a")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Release(); err != nil {
		t.Fatal(err)
	}
	if err := ws.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Error("workspace dir still exists after release")
	}
}

func TestVerifyBase(t *testing.T) {
	base := testRegion()
	if err := VerifyBase(base, base); err != nil {
		t.Errorf("identical regions flagged: %v", err)
	}
	changed := base.ShrinkBy(5)
	if err := VerifyBase(base, changed); err == nil {
		t.Error("changed base region not flagged")
	}
}
