package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xonecas/moji/internal/model"
)

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	TokenType    string `json:"token_type"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token. The token is installed on
// the client on success.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.UserID == "" {
		return nil, errors.New("login response missing token or user id")
	}

	c.SetToken(resp.AccessToken)
	return &resp, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", nil, req, nil)
}

// Users lists the users the signed-in user can chat with.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/auth/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Messages fetches one page of history with partnerID, oldest-first within
// the page. skip counts back from the newest message.
func (c *Client) Messages(ctx context.Context, currentUserID, partnerID string, limit, skip int) ([]model.Message, error) {
	q := url.Values{}
	q.Set("current_user_id", currentUserID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))

	var msgs []model.Message
	if err := c.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(partnerID)+"/messages", q, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ResolveConversation returns the conversation id for the pair, creating the
// conversation on the server if needed.
func (c *Client) ResolveConversation(ctx context.Context, currentUserID, partnerID string) (string, error) {
	q := url.Values{}
	q.Set("current_user_id", currentUserID)
	body := map[string]string{"participant_id": partnerID}

	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/conversations", q, body, &resp); err != nil {
		return "", err
	}
	if resp.ConversationID == "" {
		return "", errors.New("conversation response missing id")
	}
	return resp.ConversationID, nil
}

// ReceivedRequests lists users with a pending friend request to currentUserID.
func (c *Client) ReceivedRequests(ctx context.Context, currentUserID string) ([]model.User, error) {
	q := url.Values{}
	q.Set("current_user_id", currentUserID)

	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/friends/requests/received", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SendFriendRequest asks receiverID to become a friend of currentUserID.
func (c *Client) SendFriendRequest(ctx context.Context, currentUserID, receiverID string) error {
	body := map[string]string{
		"receiver_id":     receiverID,
		"current_user_id": currentUserID,
	}
	return c.do(ctx, http.MethodPost, "/friends/request", nil, body, nil)
}

// AcceptFriendRequest accepts the pending request from senderID.
func (c *Client) AcceptFriendRequest(ctx context.Context, currentUserID, senderID string) error {
	body := map[string]string{
		"sender_id":       senderID,
		"current_user_id": currentUserID,
	}
	return c.do(ctx, http.MethodPost, "/friends/accept", nil, body, nil)
}
