package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/credstore"
)

// PagesController renders the landing and secrets pages.
type PagesController struct {
	credentials  *credstore.Store
	hasTemplates bool
}

func NewPagesController(credentials *credstore.Store, hasTemplates bool) *PagesController {
	return &PagesController{
		credentials:  credentials,
		hasTemplates: hasTemplates,
	}
}

// Landing renders the public home page. Signed-in visitors go straight
// to the secrets page.
func (p *PagesController) Landing(c *gin.Context) {
	if auth.IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/secrets")
		return
	}

	render(c, p.hasTemplates, "home.html", gin.H{
		"Title": "Secrets",
	})
}

// Secrets renders the protected page. The auth middleware guarantees a
// signed-in user by the time this runs.
func (p *PagesController) Secrets(c *gin.Context) {
	userID := auth.GetUserID(c)

	googleLinked := false
	if p.credentials != nil {
		if _, err := p.credentials.Get(userID); err == nil {
			googleLinked = true
		}
	}

	render(c, p.hasTemplates, "secrets.html", gin.H{
		"Title":        "Secrets",
		"Username":     auth.GetUsername(c),
		"GoogleLinked": googleLinked,
		"Sent":         c.Query("sent") == "1",
	})
}

// render writes an HTML template when templates are loaded, JSON
// otherwise. Tests exercise the JSON path.
func render(c *gin.Context, hasTemplates bool, name string, data gin.H) {
	if hasTemplates {
		c.HTML(http.StatusOK, name, data)
		return
	}
	c.JSON(http.StatusOK, data)
}
