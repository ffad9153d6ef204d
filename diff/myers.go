package diff

// op is the kind of an edit script entry.
type op int

const (
	opEqual op = iota
	opInsert
	opDelete
)

// edit is one line of an edit script.
type edit struct {
	op   op
	line string
}

// myers computes the shortest edit script turning a into b.
// Based on "An O(ND) Difference Algorithm and Its Variations" (Myers, 1986).
func myers(a, b []string) []edit {
	n, m := len(a), len(b)
	maxD := n + m
	if maxD == 0 {
		return nil
	}

	offset := maxD + 1
	v := make([]int, 2*maxD+3)
	var trace [][]int

	found := false
	for d := 0; d <= maxD && !found; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				found = true
				break
			}
		}
	}

	// Backtrack from (n, m) through the saved frontiers.
	edits := make([]edit, 0, n+m)
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		vd := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && vd[offset+k-1] < vd[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vd[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			edits = append(edits, edit{op: opEqual, line: a[x]})
		}

		if d > 0 {
			if x == prevX {
				y--
				edits = append(edits, edit{op: opInsert, line: b[y]})
			} else {
				x--
				edits = append(edits, edit{op: opDelete, line: a[x]})
			}
		}
	}

	for i, j := 0, len(edits)-1; i < j; i, j = i+1, j-1 {
		edits[i], edits[j] = edits[j], edits[i]
	}
	return edits
}
