package workflow

import (
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/publishflow/publishflow/internal/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var paramPattern = regexp.MustCompile(`:([\w\-.]+)`)

// expandPath replaces ":name" tokens with the document's field values.
// Missing fields expand to "".
func expandPath(urlPath string, doc *document.Document) string {
	return paramPattern.ReplaceAllStringFunc(urlPath, func(m string) string {
		return url.PathEscape(paramValue(doc.Get(m[1:])))
	})
}

func paramValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	default:
		return fmt.Sprint(x)
	}
}

// joinURL appends path elements to base keeping its scheme and host.
func joinURL(base string, elem ...string) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" {
		return path.Join(append([]string{base}, elem...)...)
	}
	return u.JoinPath(elem...).String()
}

func (p *Plugin) liveURL(c listConfig, doc *document.Document) string {
	return joinURL(p.opts.LiveURL, expandPath(c.urlPath, doc))
}

// contentURL links to the document in the live site's admin.
func (p *Plugin) contentURL(listPath string, doc *document.Document) string {
	return joinURL(p.opts.LiveURL, contentURLPathFirst, listPath, doc.IDString())
}

func (p *Plugin) previewURL(c listConfig, doc *document.Document) string {
	if doc.GetString(document.FieldSlug) == "" {
		return previewPlaceholder
	}
	return joinURL(p.opts.PreviewURL, expandPath(c.urlPath, doc))
}
