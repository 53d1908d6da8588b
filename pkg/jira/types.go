package jira

import "encoding/json"

// SearchRequest is the body of POST /rest/api/2/search.
type SearchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
	Expand     []string `json:"expand,omitempty"`
}

// SearchResponse is the response from POST /rest/api/2/search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the issue fields requested by Search.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Created     string          `json:"created"`
	Status      Named           `json:"status"`
	Priority    *Named          `json:"priority"`
	IssueType   Named           `json:"issuetype"`
	Assignee    *User           `json:"assignee"`
	Reporter    *User           `json:"reporter"`
	Labels      []string        `json:"labels"`
	Components  []Named         `json:"components"`
	FixVersions []Named         `json:"fixVersions"`
	Attachments []Attachment    `json:"attachment"`
	IssueLinks  []IssueLink     `json:"issuelinks"`
	Parent      *LinkedIssue    `json:"parent"`
	Comment     *CommentPage    `json:"comment"`
	WSJF        json.RawMessage `json:"customfield_12918"`
}

// Named is any Jira object referenced by name (status, priority, component,
// version, issue type).
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User represents a Jira user.
type User struct {
	AccountID    string `json:"accountId"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Attachment is a file attached to an issue.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

// IssueLink connects the issue to another one in either direction.
type IssueLink struct {
	Type         LinkType     `json:"type"`
	InwardIssue  *LinkedIssue `json:"inwardIssue"`
	OutwardIssue *LinkedIssue `json:"outwardIssue"`
}

// LinkType names both directions of a link ("is blocked by" / "blocks").
type LinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// LinkedIssue is the abbreviated form Jira embeds for links and parents.
type LinkedIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

// Comment represents a single comment on a Jira issue.
type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Author  User   `json:"author"`
	Created string `json:"created"`
}

// CommentPage holds a paginated list of comments.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	StartAt    int       `json:"startAt"`
}

// Myself is the response from GET /rest/api/2/myself.
type Myself struct {
	AccountID    string `json:"accountId"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
