package split

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"tileprep/internal/grid"
)

func makeTiles(n int, withData int) ([]grid.TileDescriptor, []string) {
	tiles := make([]grid.TileDescriptor, n)
	var eligible []string
	for i := range tiles {
		tiles[i].ID = fmt.Sprintf("%03d", i)
		if i < withData {
			tiles[i].HasData = true
			eligible = append(eligible, tiles[i].ID)
		}
	}
	return tiles, eligible
}

func countRoles(tiles []grid.TileDescriptor) map[grid.Role]int {
	m := map[grid.Role]int{}
	for _, t := range tiles {
		m[t.Role]++
	}
	return m
}

func TestAssignCardinality(t *testing.T) {
	// k = round(p/100 * total grid tiles), not of the eligible subset.
	tiles, eligible := makeTiles(100, 100)
	out, err := Assign(tiles, eligible, Options{Percentage: 30})
	if err != nil {
		t.Fatal(err)
	}
	if out.Selected != 30 {
		t.Errorf("selected = %d, want 30", out.Selected)
	}
	roles := countRoles(tiles)
	if roles[grid.RoleTraining] != 30 {
		t.Errorf("training tiles = %d, want 30", roles[grid.RoleTraining])
	}
	if roles[grid.RoleApply] != 70 {
		t.Errorf("apply tiles = %d, want 70", roles[grid.RoleApply])
	}
}

func TestAssignClampsToEligibleWithWarning(t *testing.T) {
	// 100 tiles, only 10 eligible, 30% requested: want 30, get 10.
	tiles, eligible := makeTiles(100, 100)
	eligible = eligible[:10]
	out, err := Assign(tiles, eligible, Options{Percentage: 30})
	if err != nil {
		t.Fatal(err)
	}
	if out.Requested != 30 || out.Selected != 10 {
		t.Errorf("requested/selected = %d/%d, want 30/10", out.Requested, out.Selected)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", out.Warnings)
	}
	if !strings.Contains(out.Warnings[0], "10.0%") {
		t.Errorf("warning must report the effective percentage, got %q", out.Warnings[0])
	}
}

func TestAssignDisjointAcrossSeeds(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		tiles, eligible := makeTiles(50, 40)
		rng := rand.New(rand.NewSource(seed))
		if _, err := Assign(tiles, eligible, Options{Percentage: 40, Rand: rng}); err != nil {
			t.Fatal(err)
		}
		training := map[string]bool{}
		for _, tile := range tiles {
			switch tile.Role {
			case grid.RoleTraining:
				if training[tile.ID] {
					t.Fatalf("seed %d: tile %s assigned twice", seed, tile.ID)
				}
				training[tile.ID] = true
				if !tile.HasData {
					t.Fatalf("seed %d: training tile %s has no data", seed, tile.ID)
				}
			case grid.RoleApply:
				if training[tile.ID] {
					t.Fatalf("seed %d: tile %s in both datasets", seed, tile.ID)
				}
			}
		}
		if len(training) != 20 { // round(40/100*50)
			t.Errorf("seed %d: training count = %d, want 20", seed, len(training))
		}
	}
}

func TestAssignIsDeterministicPerSeed(t *testing.T) {
	pick := func(seed int64) string {
		tiles, eligible := makeTiles(50, 40)
		rng := rand.New(rand.NewSource(seed))
		if _, err := Assign(tiles, eligible, Options{Percentage: 20, Rand: rng}); err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, tile := range tiles {
			if tile.Role == grid.RoleTraining {
				ids = append(ids, tile.ID)
			}
		}
		return strings.Join(ids, ",")
	}
	if pick(7) != pick(7) {
		t.Error("same seed produced different training sets")
	}
}

func TestOnlyTraining(t *testing.T) {
	tiles, eligible := makeTiles(20, 15)
	out, err := Assign(tiles, eligible, Options{OnlyTraining: true})
	if err != nil {
		t.Fatal(err)
	}
	roles := countRoles(tiles)
	if roles[grid.RoleTraining] != 15 {
		t.Errorf("training tiles = %d, want all 15 eligible", roles[grid.RoleTraining])
	}
	// 100% of 20 tiles requested, clamped to 15 eligible.
	if out.Requested != 20 || out.Selected != 15 {
		t.Errorf("requested/selected = %d/%d, want 20/15", out.Requested, out.Selected)
	}
}

func TestOnlyApply(t *testing.T) {
	tiles, eligible := makeTiles(20, 15)
	if _, err := Assign(tiles, eligible, Options{OnlyApply: true}); err != nil {
		t.Fatal(err)
	}
	roles := countRoles(tiles)
	if roles[grid.RoleTraining] != 0 {
		t.Errorf("training tiles = %d, want 0", roles[grid.RoleTraining])
	}
	if roles[grid.RoleApply] != 15 {
		t.Errorf("apply tiles = %d, want 15", roles[grid.RoleApply])
	}
	if roles[grid.RoleExcluded] != 5 {
		t.Errorf("excluded tiles = %d, want 5", roles[grid.RoleExcluded])
	}
}

func TestAssignRejectsBadOptions(t *testing.T) {
	tiles, eligible := makeTiles(10, 10)
	if _, err := Assign(tiles, eligible, Options{OnlyTraining: true, OnlyApply: true}); !errors.Is(err, grid.ErrConfiguration) {
		t.Errorf("conflicting flags: err = %v, want ErrConfiguration", err)
	}
	if _, err := Assign(tiles, eligible, Options{Percentage: -1}); !errors.Is(err, grid.ErrConfiguration) {
		t.Errorf("negative percentage: err = %v, want ErrConfiguration", err)
	}
	if _, err := Assign(tiles, eligible, Options{Percentage: 101}); !errors.Is(err, grid.ErrConfiguration) {
		t.Errorf("percentage over 100: err = %v, want ErrConfiguration", err)
	}
}

func TestValidationSplit(t *testing.T) {
	tiles, eligible := makeTiles(50, 50)
	if _, err := Assign(tiles, eligible, Options{Percentage: 40}); err != nil {
		t.Fatal(err)
	}
	if _, err := Validation(tiles, 0.25, rand.New(rand.NewSource(3))); err != nil {
		t.Fatal(err)
	}
	roles := countRoles(tiles)
	if roles[grid.RoleValidation] != 5 { // round(0.25*20)
		t.Errorf("validation tiles = %d, want 5", roles[grid.RoleValidation])
	}
	if roles[grid.RoleTraining] != 15 {
		t.Errorf("training tiles = %d, want 15", roles[grid.RoleTraining])
	}
}
