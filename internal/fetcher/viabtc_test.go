package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(url string) *ViaBTC {
	return NewViaBTC(ViaBTCOptions{
		BaseURL:     url,
		Coin:        "BTC",
		BlockLimit:  50,
		PayoutLimit: 10,
		Timeout:     time.Second,
		UserAgent:   "test",
		Cookie:      "token=abc",
		Location:    time.UTC,
	}, noopLogger())
}

func TestFetchBlocksSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res/pool/BTC/block" {
			t.Fatalf("路径不正确: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" || r.URL.Query().Get("page") != "1" {
			t.Fatalf("查询参数不正确: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "test" {
			t.Fatalf("User-Agent 不正确: %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"data":[
			{"height":880002,"luck":"1.25","reward":"3.17","running_time":1200,"time":1760000000},
			{"height":"880001","luck":null,"reward":3.15,"running_time":"40","time":1759990000},
			{"height":"bogus","luck":"1","reward":"1","running_time":1,"time":1},
			{"height":880000,"luck":"abc","reward":"1","running_time":100,"time":1}
		]}}`))
	}))
	defer srv.Close()

	blocks, err := newTestClient(srv.URL).FetchBlocks(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("应跳过两条格式错误记录, 实际 %d 条", len(blocks))
	}

	first := blocks[0]
	if first.Height != 880002 || !first.Luck.Valid || !first.Luck.Decimal.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("第一条解析不正确: %+v", first)
	}
	if first.Runtime != 1200 || first.Timestamp != 1760000000 {
		t.Fatalf("runtime/time 解析不正确: %+v", first)
	}
	if blocks[1].Luck.Valid {
		t.Fatal("luck 为 null 时应视为缺失")
	}
	if !blocks[1].Reward.Equal(decimal.RequireFromString("3.15")) {
		t.Fatalf("数字形式的 reward 应能解析: %s", blocks[1].Reward)
	}
}

func TestFetchBlocksHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchBlocks(context.Background())
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("HTTP 502 应返回 ErrAPI, 实际 %v", err)
	}
}

func TestFetchBlocksBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).FetchBlocks(context.Background()); err == nil {
		t.Fatal("非 JSON 响应应报错")
	}
}

func TestFetchPayouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res/profit/BTC/pplns" {
			t.Fatalf("路径不正确: %s", r.URL.Path)
		}
		if r.URL.Query().Get("month") != "2026-10" {
			t.Fatalf("month 参数不正确: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Cookie") != "token=abc" {
			t.Fatalf("应携带 Cookie")
		}
		if r.Header.Get("Referer") == "" || r.Header.Get("Origin") == "" {
			t.Fatalf("应携带 Referer/Origin")
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"data":[
			{"height":880010,"profit":"0.00012345","date":"2026-10-14"},
			{"height":880011,"profit":0.0002,"time":1792022400},
			{"height":880012},
			{"profit":"1"}
		]}}`))
	}))
	defer srv.Close()

	payouts, err := newTestClient(srv.URL).FetchPayouts(context.Background(), "2026-10")
	if err != nil {
		t.Fatalf("FetchPayouts: %v", err)
	}
	if len(payouts) != 3 {
		t.Fatalf("缺少 height 的记录应被跳过, 实际 %d 条", len(payouts))
	}
	if payouts[0].Date != "2026-10-14" {
		t.Fatalf("应优先使用 date 字段: %q", payouts[0].Date)
	}
	if payouts[1].Date != "2026-10-15 00:00" {
		t.Fatalf("应由 time 推导日期: %q", payouts[1].Date)
	}
	if payouts[2].Date != "Unknown Date" || !payouts[2].Profit.IsZero() {
		t.Fatalf("缺省字段处理不正确: %+v", payouts[2])
	}
}

func TestFetchPayoutsAPICode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1001,"message":"login required","data":{}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPayouts(context.Background(), "2026-10")
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("code!=0 应返回 ErrAPI, 实际 %v", err)
	}
}

func TestFetchPayoutsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"data":[]}}`))
	}))
	defer srv.Close()

	payouts, err := newTestClient(srv.URL).FetchPayouts(context.Background(), "2026-10")
	if err != nil || len(payouts) != 0 {
		t.Fatalf("空列表应返回空结果: %v %v", payouts, err)
	}
}
