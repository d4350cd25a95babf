package convert

// Record is one body row keyed by column name, used for the row-object JSON
// representation. Key order follows the first occurrence of each name in the
// header; when the header repeats a name, the last column's value wins. The
// mapping form is lossy on duplicate names; Table.Rows keeps every cell.
type Record struct {
	keys   []string
	values map[string]string
}

func newRecord(header, row []string) Record {
	r := Record{
		keys:   make([]string, 0, len(header)),
		values: make(map[string]string, len(header)),
	}
	for i, name := range header {
		if _, seen := r.values[name]; !seen {
			r.keys = append(r.keys, name)
		}
		r.values[name] = row[i]
	}
	return r
}

// Get returns the value stored under name.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Keys returns the column names in header order, deduplicated.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len reports the number of distinct column names.
func (r Record) Len() int {
	return len(r.keys)
}
