package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const (
	mockJWT          = "valid-jwt"
	mockServiceToken = "service-token"
	mockOwnerID      = "owner-1"
	mockUsername     = "tester"
	mockDataset      = "basic-csv"
)

// mockDataHub imitates the flow manager and auth service closely enough for
// the check sequences to pass against it.
type mockDataHub struct {
	mu sync.Mutex

	latest        int
	successful    int
	state         string
	stateOnUpload string
	calls         map[string]int

	server *httptest.Server
}

func newMockDataHub(baseline int) *mockDataHub {
	m := &mockDataHub{
		latest:        baseline,
		successful:    baseline,
		state:         StateSucceeded,
		stateOnUpload: StateSucceeded,
		calls:         make(map[string]int),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		m.mu.Lock()
		m.calls[c.FullPath()]++
		m.mu.Unlock()
		c.Next()
	})

	router.POST("/source/upload", m.upload)
	router.GET("/source/:owner/:dataset/:revision", m.revision)

	auth := router.Group("/auth")
	{
		auth.GET("/check", m.check)
		auth.GET("/authorize", m.authorize)
		auth.POST("/update", m.update)
		auth.GET("/public-key", func(c *gin.Context) {
			c.String(http.StatusOK, "-----BEGIN PUBLIC KEY-----\nMOCK\n-----END PUBLIC KEY-----\n")
		})
		auth.GET("/resolve", m.userid)
		auth.GET("/profile", m.userid)
	}

	m.server = httptest.NewServer(router)
	return m
}

func (m *mockDataHub) URL() string { return m.server.URL }

func (m *mockDataHub) Close() { m.server.Close() }

func (m *mockDataHub) setState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	if state == StateSucceeded {
		m.successful = m.latest
	}
}

// processOnUpload sets the state a new revision reports right after upload
func (m *mockDataHub) processOnUpload(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateOnUpload = state
}

func (m *mockDataHub) callCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func rejectUpload(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "errors": []string{msg}})
}

func (m *mockDataHub) upload(c *gin.Context) {
	raw, _ := io.ReadAll(c.Request.Body)
	if len(raw) == 0 || c.ContentType() != "application/json" {
		rejectUpload(c, MsgEmptyContents)
		return
	}

	var payload struct {
		Meta struct {
			OwnerID string `json:"ownerid"`
			Dataset string `json:"dataset"`
		} `json:"meta"`
		Inputs []struct {
			Kind string `json:"kind"`
		} `json:"inputs"`
		Schedule string `json:"schedule"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		rejectUpload(c, "Unexpected error: "+err.Error())
		return
	}

	switch {
	case payload.Meta.OwnerID == "":
		rejectUpload(c, MsgMissingOwner)
	case payload.Meta.OwnerID != mockOwnerID || c.GetHeader("auth-token") != mockServiceToken:
		rejectUpload(c, MsgNotAuthorised)
	case payload.Meta.Dataset != mockDataset:
		rejectUpload(c, MsgPlanLimitExceeded)
	case len(payload.Inputs) == 0 || payload.Inputs[0].Kind != "datapackage":
		rejectUpload(c, MsgUnsupportedInput)
	case payload.Schedule != "":
		if msg := checkSchedule(payload.Schedule); msg != "" {
			rejectUpload(c, msg)
			return
		}
		m.accept(c)
	default:
		m.accept(c)
	}
}

func checkSchedule(schedule string) string {
	expr := strings.TrimPrefix(schedule, "every ")
	if expr == "" {
		return MsgBadTimeUnit
	}
	unit := expr[len(expr)-1]
	seconds := map[byte]int{'s': 1, 'm': 60, 'h': 3600, 'd': 86400, 'w': 604800}[unit]
	if seconds == 0 {
		return MsgBadTimeUnit
	}
	n, err := strconv.Atoi(expr[:len(expr)-1])
	if err != nil {
		return MsgBadTimeUnit
	}
	if n*seconds < 60 {
		return MsgScheduleTooShort
	}
	return ""
}

func (m *mockDataHub) accept(c *gin.Context) {
	m.mu.Lock()
	m.latest++
	m.state = ""
	stateOnUpload := m.stateOnUpload
	m.mu.Unlock()

	m.setState(stateOnUpload)
	c.JSON(http.StatusOK, gin.H{"success": true, "errors": []string{}})
}

func (m *mockDataHub) revision(c *gin.Context) {
	if c.Param("owner") != mockOwnerID || c.Param("dataset") != mockDataset {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	m.mu.Lock()
	latest, successful, state := m.latest, m.successful, m.state
	m.mu.Unlock()

	id := func(n int) string { return fmt.Sprintf("%s/%s/%d", mockUsername, mockDataset, n) }

	switch rev := c.Param("revision"); rev {
	case RevisionLatest:
		c.JSON(http.StatusOK, gin.H{"id": id(latest), "state": state})
	case RevisionSuccessful:
		c.JSON(http.StatusOK, gin.H{"id": id(successful), "state": StateSucceeded})
	default:
		n, err := strconv.Atoi(rev)
		if err != nil || n < 1 || n > latest {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id(n), "state": StateSucceeded})
	}
}

func (m *mockDataHub) check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": c.Query("jwt") == mockJWT})
}

func (m *mockDataHub) authorize(c *gin.Context) {
	service := c.Query("service")
	if c.Query("jwt") != mockJWT || (service != "source" && service != "rawstore") {
		c.JSON(http.StatusOK, gin.H{"permissions": gin.H{}, "token": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": gin.H{"max_dataset_num": 2}, "token": mockServiceToken})
}

func (m *mockDataHub) update(c *gin.Context) {
	if c.Query("jwt") != mockJWT {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": MsgNotAuthenticated})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": false, "error": MsgUsernameSet})
}

func (m *mockDataHub) userid(c *gin.Context) {
	if c.Query("username") == mockUsername {
		c.JSON(http.StatusOK, gin.H{"userid": mockOwnerID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userid": nil})
}
