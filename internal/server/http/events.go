package internalhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aokihara/eventboard/internal/storage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	msgInvalidDate      = "Select a valid date."
	msgInvalidURL       = "Enter a valid URL, e.g. https://www.example.com"
	msgPermissionDenied = "You do not have permission to modify this event."
	msgEventNotFound    = "Event not found."
	msgSaveFailed       = "Failed to save the event. Please try again."
)

// eventForm is one submit of the create/edit form. Date travels as text;
// validation happens before any storage call.
type eventForm struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	CustomType  string `json:"customType"`
	Description string `json:"description"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	Date        string `json:"date"`
}

// resolve validates the form and builds the write payload. Validation order:
// date first, then URL.
func (f eventForm) resolve(user storage.User) (storage.Event, error) {
	date := storage.NormalizeDate(f.Date)
	if !date.Known {
		return storage.Event{}, errors.New(msgInvalidDate)
	}
	if f.URL != "" && !isValidURL(f.URL) {
		return storage.Event{}, errors.New(msgInvalidURL)
	}

	eventType := f.Type
	if f.CustomType != "" {
		eventType = f.CustomType
	}

	ownerName := user.DisplayName
	if ownerName == "" {
		ownerName = "user"
	}

	return storage.Event{
		Title:       f.Title,
		Type:        eventType,
		Description: f.Description,
		Location:    f.Location,
		URL:         f.URL,
		Date:        date,
		OwnerName:   ownerName,
		OwnerID:     user.ID,
	}, nil
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (s *Server) handleListEvents(c *gin.Context) {
	events, err := s.app.ListEvents(c.Request.Context())
	if err != nil {
		log.Errorf("failed to list events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	user := sessionUser(c)

	var form eventForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	event, err := form.resolve(user)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id, err := s.app.CreateEvent(c.Request.Context(), event)
	if err != nil {
		s.writeEventError(c, err)
		return
	}
	event.ID = id
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (s *Server) handleUpdateEvent(c *gin.Context) {
	user := sessionUser(c)

	var form eventForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	event, err := form.resolve(user)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := s.app.UpdateEvent(c.Request.Context(), c.Param("id"), user.ID, event); err != nil {
		s.writeEventError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event updated"})
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	user := sessionUser(c)

	if err := s.app.RemoveEvent(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		s.writeEventError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

// writeEventError distinguishes permission-denied from other write failures.
func (s *Server) writeEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"message": msgPermissionDenied})
	case errors.Is(err, storage.ErrNotFoundEvent):
		c.JSON(http.StatusNotFound, gin.H{"message": msgEventNotFound})
	case errors.Is(err, storage.ErrIncorrectEventDate):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidDate})
	default:
		log.Errorf("event write failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgSaveFailed})
	}
}

// handleEventStream delivers the live event list over SSE: one complete
// snapshot per change, starting with the current list.
func (s *Server) handleEventStream(c *gin.Context) {
	snapshots, cancel, err := s.hub.Subscribe(c.Request.Context())
	if err != nil {
		log.Errorf("failed to subscribe to event feed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to open event stream"})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case events, ok := <-snapshots:
			if !ok {
				return false
			}
			data, err := json.Marshal(events)
			if err != nil {
				log.Errorf("failed to marshal snapshot: %v", err)
				return true
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			return true
		case <-time.After(30 * time.Second):
			// keep-alive comment so proxies do not drop the stream
			fmt.Fprint(w, ": ping\n\n")
			return true
		}
	})
}
