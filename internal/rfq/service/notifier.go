package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/c1767673917/wlxj/internal/metrics"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"go.uber.org/zap"
)

// webhook通知重试参数
const (
	notifyMaxAttempts    = 3
	notifyRequestTimeout = 5 * time.Second
	notifyBackoffStep    = 500 * time.Millisecond

	notifyGoodsMaxRunes   = 100
	notifyAddressMaxRunes = 50
)

// Notifier 通过供应商webhook推送询价通知
// 通知是尽力而为的旁路动作，任何失败都不会影响订单主流程
type Notifier struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger

	// 休眠可注入，便于测试重试退避
	sleep func(time.Duration)
}

// NotifyResult 一批通知的结果汇总，随接口响应返回
type NotifyResult struct {
	Notified int      `json:"notified"`
	Failed   []string `json:"failed"`
	Skipped  int      `json:"skipped"`
}

func NewNotifier(baseURL string, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:  &http.Client{Timeout: notifyRequestTimeout},
		baseURL: baseURL,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// webhookMessage webhook文本消息体
type webhookMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// NotifySuppliers 向受邀供应商逐个推送新询价单通知
// 未配置webhook的供应商跳过；单个供应商失败只记录不中断
// 第二个返回值是送达成功的供应商ID，供调用方更新通知状态
func (n *Notifier) NotifySuppliers(ctx context.Context, order *entity.Order, suppliers []entity.Supplier) (*NotifyResult, []uint) {
	result := &NotifyResult{}
	var succeeded []uint

	for i := range suppliers {
		s := &suppliers[i]
		if s.WebhookURL == "" {
			result.Skipped++
			continue
		}

		content := n.buildContent(order, s)
		if err := n.send(ctx, s.WebhookURL, content); err != nil {
			metrics.ObserveNotify("failed")
			n.logger.Warn("供应商通知发送失败",
				zap.String("order_no", order.OrderNo),
				zap.Uint("supplier_id", s.ID),
				zap.String("supplier", s.Name),
				zap.Error(err))
			result.Failed = append(result.Failed, s.Name)
			continue
		}

		metrics.ObserveNotify("success")
		result.Notified++
		succeeded = append(succeeded, s.ID)
	}

	n.logger.Info("询价通知推送完成",
		zap.String("order_no", order.OrderNo),
		zap.Int("notified", result.Notified),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))
	return result, succeeded
}

// buildContent 组装通知文本，货品和地址超长时截断
func (n *Notifier) buildContent(order *entity.Order, supplier *entity.Supplier) string {
	goods := truncateRunes(order.Goods, notifyGoodsMaxRunes)
	address := truncateRunes(order.DeliveryAddress, notifyAddressMaxRunes)
	portalLink := fmt.Sprintf("%s/portal/supplier/%s", n.baseURL, supplier.AccessCode)

	return fmt.Sprintf("【新询价单】\n订单号：%s\n仓库：%s\n货品：%s\n收货地址：%s\n请点击链接报价：%s",
		order.OrderNo, order.Warehouse, goods, address, portalLink)
}

// send 发送单条webhook消息，最多重试3次，线性退避
func (n *Notifier) send(ctx context.Context, url, content string) error {
	msg := webhookMessage{MsgType: "text"}
	msg.Text.Content = content
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		if attempt > 1 {
			n.sleep(time.Duration(attempt-1) * notifyBackoffStep)
		}

		reqCtx, cancel := context.WithTimeout(ctx, notifyRequestTimeout)
		lastErr = n.post(reqCtx, url, body)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("重试%d次后仍失败: %w", notifyMaxAttempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 仅200视为送达，其余状态码一律进入重试
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook返回状态码 %d", resp.StatusCode)
	}
	return nil
}

// truncateRunes 按字符数截断，超长时追加省略号
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
