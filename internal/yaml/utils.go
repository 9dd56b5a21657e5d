package yaml

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// SafeString returns a string which is sufficiently quoted and escaped for YAML.
func SafeString(str string) string {
	str = strings.Replace(str, "\\", "\\\\", -1)
	str = strings.Replace(str, "\"", "\\\"", -1)
	return "\"" + str + "\""
}

// Float formats a number so that YAML parsers read it back as a float.
// NaN and infinities become ".nan", ".inf" and "-.inf".
func Float(val float64) string {
	switch {
	case math.IsNaN(val):
		return ".nan"
	case math.IsInf(val, 1):
		return ".inf"
	case math.IsInf(val, -1):
		return "-.inf"
	}
	str := strconv.FormatFloat(val, 'f', -1, 64)
	if !strings.ContainsAny(str, ".e") {
		str += ".0"
	}
	return str
}

// PrintStrings outputs a list of strings in the flow style: `name: ["a", "b"]`.
//
// `indent` is the current YAML indentation level - the number of spaces.
func PrintStrings(writer io.Writer, indent int, name string, items []string) {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = SafeString(item)
	}
	fmt.Fprintf(writer, "%s%s: [%s]\n", strings.Repeat(" ", indent), name, strings.Join(quoted, ", "))
}
