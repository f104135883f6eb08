package repo

import "testing"

func TestClampPage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{page: 1, size: 50, wantPage: 1, wantSize: 50},
		{page: 0, size: 0, wantPage: 1, wantSize: 50},
		{page: -3, size: -1, wantPage: 1, wantSize: 50},
		{page: 2, size: 1000, wantPage: 2, wantSize: 500},
		{page: 7, size: 1, wantPage: 7, wantSize: 1},
	}

	for _, tc := range cases {
		p, s := ClampPage(tc.page, tc.size)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("ClampPage(%d,%d)=(%d,%d) want (%d,%d)",
				tc.page, tc.size, p, s, tc.wantPage, tc.wantSize)
		}
	}
}

func TestTableDefaults(t *testing.T) {
	t.Parallel()

	type row struct{}
	tbl := Table[row]{Name: "things"}
	if tbl.idCol() != "id" {
		t.Fatalf("default id column: got %q", tbl.idCol())
	}
	tbl.IDColumn = "thing_id"
	if tbl.idCol() != "thing_id" {
		t.Fatalf("explicit id column: got %q", tbl.idCol())
	}
}
