package ddl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
)

// ErrTemplateSyntax is returned for a malformed placeholder
var ErrTemplateSyntax = errors.New("malformed ddl template")

// TemplateKeyError is returned when a template names a placeholder that is
// neither a default for the target nor an override
type TemplateKeyError struct {
	Key string
}

// Error implements the error interface
func (e *TemplateKeyError) Error() string {
	return fmt.Sprintf("ddl template key %q is not defined", e.Key)
}

// qualified is a target with an enclosing schema
type qualified interface {
	ObjectName() string
	SchemaName() string
}

// Render substitutes %(name)s placeholders in template. For targets that
// have a schema (tables, indexes) the defaults are table, schema and
// fullname, each quoted only when quoter says it needs quoting. Overrides
// replace any key verbatim. %% renders a single %.
func Render(template string, target hooks.Target, overrides map[string]string, quoter dialect.Quoter) (string, error) {
	values := defaultTokens(target, quoter)
	for k, v := range overrides {
		values[k] = v
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		if i+1 >= len(template) {
			return "", fmt.Errorf("%w: trailing %% at offset %d", ErrTemplateSyntax, i)
		}
		switch template[i+1] {
		case '%':
			b.WriteByte('%')
			i++
		case '(':
			end := strings.IndexByte(template[i+2:], ')')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated placeholder at offset %d", ErrTemplateSyntax, i)
			}
			key := template[i+2 : i+2+end]
			next := i + 2 + end + 1
			if next >= len(template) || template[next] != 's' {
				return "", fmt.Errorf("%w: placeholder %q must end in )s", ErrTemplateSyntax, key)
			}
			v, ok := values[key]
			if !ok {
				return "", &TemplateKeyError{Key: key}
			}
			b.WriteString(v)
			i = next
		default:
			return "", fmt.Errorf("%w: unexpected %q after %% at offset %d", ErrTemplateSyntax, template[i+1], i)
		}
	}

	return b.String(), nil
}

func defaultTokens(target hooks.Target, quoter dialect.Quoter) map[string]string {
	values := make(map[string]string, 3)
	q, ok := target.(qualified)
	if !ok {
		return values
	}

	quote := func(name string) string {
		if quoter != nil && quoter.NeedsQuoting(name) {
			return quoter.Quote(name)
		}
		return name
	}

	table := quote(q.ObjectName())
	schemaName := ""
	if q.SchemaName() != "" {
		schemaName = quote(q.SchemaName())
	}

	values["table"] = table
	values["schema"] = schemaName
	if schemaName != "" {
		values["fullname"] = schemaName + "." + table
	} else {
		values["fullname"] = table
	}
	return values
}
