package service

import "strings"

// ToRows maps stored cells onto header names. Rows whose cells are all blank
// are dropped, and short rows are padded with "".
func ToRows(header []string, cells [][]string) []Row {
	rows := make([]Row, 0, len(cells))
	for _, raw := range cells {
		row := make(Row, len(header))
		empty := true
		for i, name := range header {
			if name == "" {
				continue
			}
			v := ""
			if i < len(raw) {
				v = raw[i]
			}
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			row[name] = v
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
