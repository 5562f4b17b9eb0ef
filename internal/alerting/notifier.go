package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message 封装一次推送内容。Photo 为空时发送纯文本。
type Message struct {
	Text      string
	Photo     []byte
	PhotoName string
	ParseMode string
}

// Notifier 定义推送接口。
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 推送器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 有图片时调用 sendPhoto（文本作为 caption），否则调用 sendMessage。
func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	var (
		req *http.Request
		err error
	)
	if len(msg.Photo) > 0 {
		req, err = n.photoRequest(ctx, msg)
	} else {
		req, err = n.textRequest(ctx, msg)
	}
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("telegram 响应码异常: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
		}
	}

	n.logger.Info().Bool("photo", len(msg.Photo) > 0).Msg("消息已发送 (Telegram)")
	return nil
}

func (n *TelegramNotifier) textRequest(ctx context.Context, msg Message) (*http.Request, error) {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    msg.Text,
	}
	if msg.ParseMode != "" {
		payload["parse_mode"] = msg.ParseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (n *TelegramNotifier) photoRequest(ctx context.Context, msg Message) (*http.Request, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	fields := map[string]string{"chat_id": n.chatID, "caption": msg.Text}
	if msg.ParseMode != "" {
		fields["parse_mode"] = msg.ParseMode
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write telegram field %s: %w", k, err)
		}
	}

	name := msg.PhotoName
	if name == "" {
		name = "card.png"
	}
	part, err := form.CreateFormFile("photo", name)
	if err != nil {
		return nil, fmt.Errorf("create telegram photo part: %w", err)
	}
	if _, err := part.Write(msg.Photo); err != nil {
		return nil, fmt.Errorf("write telegram photo: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close telegram form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendPhoto"), &body)
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req, nil
}

func (n *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
}

var _ Notifier = (*TelegramNotifier)(nil)
