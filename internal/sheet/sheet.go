// Package sheet stores form fields in an XLSX workbook. Fields are
// addressed by workbook defined names; keys without one live as key/value
// rows on a dedicated sheet.
package sheet

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// FieldsSheet holds key/value rows for keys with no defined name.
const FieldsSheet = "Fields"

// Workbook is a key/value view over one XLSX file.
type Workbook struct {
	path string

	mu    sync.Mutex
	file  *xlsx.File
	names map[string]cellRef
}

type cellRef struct {
	sheet    string
	row, col int
}

// Open loads path, creating an empty workbook when it does not exist.
func Open(path string) (*Workbook, error) {
	w := &Workbook{path: path, names: make(map[string]cellRef)}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		w.file = xlsx.NewFile()
		if _, err := w.file.AddSheet(FieldsSheet); err != nil {
			return nil, eris.Wrap(err, "sheet: create fields sheet")
		}
		return w, nil
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: open %s", path)
	}
	w.file = f
	for _, dn := range f.DefinedNames {
		ref, err := parseRef(dn.Data)
		if err != nil {
			zap.L().Debug("sheet: skipping defined name", zap.String("name", dn.Name), zap.Error(err))
			continue
		}
		w.names[strings.ToLower(dn.Name)] = ref
	}
	return w, nil
}

// Get returns the values of keys that hold something. Missing keys are
// left out of the result.
func (w *Workbook) Get(keys []string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if c := w.cell(k, false); c != nil {
			if v := cellValue(c); v != nil {
				out[k] = v
			}
		}
	}
	return out
}

// Set writes value under key. Call Save to persist.
func (w *Workbook) Set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return eris.New("sheet: key is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.cell(key, true)
	if c == nil {
		return eris.Errorf("sheet: no cell for %s", key)
	}
	switch v := value.(type) {
	case nil:
		c.SetString("")
	case string:
		c.SetString(v)
	case float64:
		c.SetFloat(v)
	case *float64:
		if v == nil {
			c.SetString("")
		} else {
			c.SetFloat(*v)
		}
	case int:
		c.SetInt(v)
	case *int:
		if v == nil {
			c.SetString("")
		} else {
			c.SetInt(*v)
		}
	case bool:
		c.SetBool(v)
	default:
		c.SetValue(v)
	}
	return nil
}

// SetAll writes every field.
func (w *Workbook) SetAll(fields map[string]any) error {
	for k, v := range fields {
		if err := w.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the workbook back to its path.
func (w *Workbook) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return eris.Wrapf(w.file.Save(w.path), "sheet: save %s", w.path)
}

// cell finds the cell for key. With create, a missing fields row is
// appended.
func (w *Workbook) cell(key string, create bool) *xlsx.Cell {
	if ref, ok := w.names[strings.ToLower(key)]; ok {
		s := w.file.Sheet[ref.sheet]
		if s == nil {
			return nil
		}
		return s.Cell(ref.row, ref.col)
	}

	s := w.file.Sheet[FieldsSheet]
	if s == nil {
		if !create {
			return nil
		}
		var err error
		if s, err = w.file.AddSheet(FieldsSheet); err != nil {
			return nil
		}
	}
	for _, row := range s.Rows {
		if len(row.Cells) > 0 && strings.EqualFold(strings.TrimSpace(row.Cells[0].String()), key) {
			for len(row.Cells) < 2 {
				row.AddCell()
			}
			return row.Cells[1]
		}
	}
	if !create {
		return nil
	}
	row := s.AddRow()
	row.AddCell().SetString(key)
	return row.AddCell()
}

func cellValue(c *xlsx.Cell) any {
	s := strings.TrimSpace(c.String())
	if s == "" {
		return nil
	}
	if c.Type() == xlsx.CellTypeNumeric {
		if f, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return f
		}
	}
	return s
}

// parseRef reads a single-cell reference like 'Deal Sheet'!$B$4.
func parseRef(ref string) (cellRef, error) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, "!")
	if i <= 0 {
		return cellRef{}, eris.Errorf("sheet: reference %q has no sheet", ref)
	}
	sheetName := strings.Trim(ref[:i], "'")
	addr := strings.ReplaceAll(ref[i+1:], "$", "")
	if strings.Contains(addr, ":") {
		addr = addr[:strings.Index(addr, ":")]
	}
	col, row, err := xlsx.GetCoordsFromCellIDString(addr)
	if err != nil {
		return cellRef{}, eris.Wrapf(err, "sheet: parse reference %q", ref)
	}
	return cellRef{sheet: sheetName, row: row, col: col}, nil
}
