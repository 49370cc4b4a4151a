package http

import (
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/credstore"
	gmail "github.com/mrlokans/secrets/internal/mail"
)

// SubmitController handles the mail submission form. Sending requires a
// delegated Gmail credential obtained through Google sign-in.
type SubmitController struct {
	credentials  *credstore.Store
	mailClient   *gmail.Client
	hasTemplates bool
}

func NewSubmitController(credentials *credstore.Store, mailClient *gmail.Client, hasTemplates bool) *SubmitController {
	return &SubmitController{
		credentials:  credentials,
		mailClient:   mailClient,
		hasTemplates: hasTemplates,
	}
}

// Page renders the submission form, or the connect prompt when the user
// has not granted mail access yet.
func (s *SubmitController) Page(c *gin.Context) {
	userID := auth.GetUserID(c)

	cred, err := s.credentials.Get(userID)
	if errors.Is(err, credstore.ErrNoCredential) {
		render(c, s.hasTemplates, "submit.html", gin.H{
			"Title":       "Send mail",
			"NeedsGoogle": true,
			"Error":       "Connect your Google account to send mail.",
		})
		return
	}
	if err != nil {
		log.Printf("Failed to load credential for user %d: %v", userID, err)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	render(c, s.hasTemplates, "submit.html", gin.H{
		"Title":     "Send mail",
		"From":      cred.Email,
		"CSRFToken": auth.GetCSRFToken(c),
	})
}

// Send dispatches the submitted message as the signed-in user. Failures
// surface immediately; there is no retry or queue.
func (s *SubmitController) Send(c *gin.Context) {
	userID := auth.GetUserID(c)

	to := strings.TrimSpace(c.PostForm("to"))
	subject := strings.TrimSpace(c.PostForm("subject"))
	message := c.PostForm("message")

	renderError := func(status int, msg string, needsGoogle bool) {
		if s.hasTemplates {
			c.HTML(status, "submit.html", gin.H{
				"Title":       "Send mail",
				"To":          to,
				"Subject":     subject,
				"Message":     message,
				"NeedsGoogle": needsGoogle,
				"CSRFToken":   auth.GetCSRFToken(c),
				"Error":       msg,
			})
			return
		}
		c.JSON(status, gin.H{"error": msg})
	}

	if to == "" {
		renderError(http.StatusBadRequest, "Recipient address is required", false)
		return
	}
	if _, err := mail.ParseAddress(to); err != nil {
		renderError(http.StatusBadRequest, "Recipient address is invalid", false)
		return
	}
	if subject == "" {
		renderError(http.StatusBadRequest, "Subject is required", false)
		return
	}

	cred, err := s.credentials.Get(userID)
	if errors.Is(err, credstore.ErrNoCredential) {
		renderError(http.StatusForbidden, "Connect your Google account to send mail.", true)
		return
	}
	if err != nil {
		log.Printf("Failed to load credential for user %d: %v", userID, err)
		renderError(http.StatusInternalServerError, "Internal error", false)
		return
	}

	err = s.mailClient.Send(c.Request.Context(), cred.AccessToken, cred.Email, to, subject, message)
	if err != nil {
		log.Printf("Mail dispatch failed for user %d: %v", userID, err)

		var dispatchErr *gmail.DispatchError
		if errors.As(err, &dispatchErr) &&
			(dispatchErr.StatusCode == http.StatusUnauthorized || dispatchErr.StatusCode == http.StatusForbidden) {
			renderError(http.StatusForbidden, "Google rejected the credential. Reconnect your account.", true)
			return
		}

		renderError(http.StatusBadGateway, "Failed to send the message. Please try again.", false)
		return
	}

	c.Redirect(http.StatusFound, "/secrets?sent=1")
}
