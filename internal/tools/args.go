package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xmubeta/outlook-mcp-server/internal/action"
	"github.com/xmubeta/outlook-mcp-server/internal/apperr"
)

// args reads tool arguments loosely: clients built on text-only models
// send numbers and booleans as strings, so both forms are accepted.
type args struct {
	root gjson.Result
}

func parseArgs(raw json.RawMessage) (args, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return args{root: gjson.Parse("{}")}, nil
	}
	if !gjson.ValidBytes(raw) {
		return args{}, apperr.Validation("arguments are not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if root.Type == gjson.Null {
		root = gjson.Parse("{}")
	}
	if !root.IsObject() {
		return args{}, apperr.Validation("arguments must be a JSON object")
	}
	return args{root: root}, nil
}

func (a args) get(name string) (gjson.Result, bool) {
	v := a.root.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return v, false
	}
	return v, true
}

// String returns the named string argument, or "" when absent.
func (a args) String(name string) string {
	v, ok := a.get(name)
	if !ok {
		return ""
	}
	return v.String()
}

// Int returns the named integer argument, def when absent, and
// ok=false when present but not an integer.
func (a args) Int(name string, def int) (n int, ok bool) {
	v, present := a.get(name)
	if !present {
		return def, true
	}

	switch v.Type {
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) || math.Abs(v.Num) > math.MaxInt32 {
			return 0, false
		}
		return int(v.Num), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Has reports whether the named argument was given.
func (a args) Has(name string) bool {
	_, ok := a.get(name)
	return ok
}

// Bool returns the named flag using action.ParseBool, or def when absent.
func (a args) Bool(name string, def bool) bool {
	v, ok := a.get(name)
	if !ok {
		return def
	}
	return action.ParseBool(v.Value())
}
