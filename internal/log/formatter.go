package log

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands %time, %level, %field, %msg, %caller and %func in the pattern.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", getCaller(entry),
		"%func", getFunc(entry),
	)
	return []byte(r.Replace(f.pattern)), nil
}

// getCaller renders package/file.go:line, or "-" when caller reporting is off.
func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		pkgPath := fn[:strings.LastIndex(fn, "/")+1]
		rest := fn[len(pkgPath):]
		if dot := strings.Index(rest, "."); dot > 0 {
			pkg = rest[:dot]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(entry.Caller.File), entry.Caller.Line)
}

func getFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	fn := entry.Caller.Function
	if dot := strings.LastIndex(fn, "."); dot != -1 && dot+1 < len(fn) {
		return fn[dot+1:]
	}
	return fn
}

// buildFields renders key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val, ok := entry.Data[k].(string)
		if !ok {
			val = fmt.Sprint(entry.Data[k])
		}
		fields = append(fields, k+"="+val)
	}
	return strings.Join(fields, ",")
}
