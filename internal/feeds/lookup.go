package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/feedlatency/internal/domain"
	sdkhttp "github.com/betbot/feedlatency/pkg/sdk/http"
)

var lookupLog = logrus.WithField("component", "market_lookup")

const orderBooksPath = "/api/v1/orderBooks"

var (
	ErrLookup         = errors.New("market lookup failure")
	ErrMarketNotFound = errors.New("market not found")
)

type orderBooksResponse struct {
	OrderBooks []struct {
		Symbol   string `json:"symbol"`
		MarketID int    `json:"market_id"`
	} `json:"order_books"`
}

// MarketLookup 通过 REST 把交易对解析为 Lighter 的 market_id
type MarketLookup struct {
	client *sdkhttp.Client
}

// NewMarketLookup 创建查询器，timeout 为整体请求超时
func NewMarketLookup(restURL string, timeout time.Duration, proxyURL string) *MarketLookup {
	return &MarketLookup{
		client: sdkhttp.NewClient(restURL, sdkhttp.ClientOptions{
			Timeout:  timeout,
			ProxyURL: proxyURL,
		}),
	}
}

// Resolve 精确匹配 symbol；请求失败返回 ErrLookup，无匹配返回 ErrMarketNotFound
func (l *MarketLookup) Resolve(ctx context.Context, symbol string) (*domain.Market, error) {
	var resp orderBooksResponse
	if err := l.client.GetJSON(ctx, orderBooksPath, nil, &resp); err != nil {
		lookupLog.Errorf("获取 market index 失败: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	for _, ob := range resp.OrderBooks {
		if ob.Symbol == symbol {
			market := &domain.Market{Symbol: ob.Symbol, MarketID: ob.MarketID}
			lookupLog.Infof("找到市场: %s -> market_id=%d", market.Symbol, market.MarketID)
			return market, nil
		}
	}
	lookupLog.Warnf("未找到 %s 的市场信息（共 %d 个市场）", symbol, len(resp.OrderBooks))
	return nil, errors.Wrapf(ErrMarketNotFound, "symbol %s", symbol)
}
