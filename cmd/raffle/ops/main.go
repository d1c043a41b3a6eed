// Command ops issues tokens and answers randomness requests against a running raffle.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/urfave/cli.v1"

	"github.com/frankieli/raffle_engine/internal/config"
	"github.com/frankieli/raffle_engine/internal/modules/randomness"
	randomnessRedis "github.com/frankieli/raffle_engine/internal/modules/randomness/redis"
	walletModule "github.com/frankieli/raffle_engine/internal/modules/wallet"
	"github.com/frankieli/raffle_engine/pkg/auth"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

func main() {
	app := cli.NewApp()
	app.Name = "raffle-ops"
	app.Usage = "operate a raffle engine"
	app.Before = func(c *cli.Context) error {
		logger.Init(logger.Config{Level: "info", Format: "console"})
		return nil
	}
	app.After = func(c *cli.Context) error {
		logger.Flush()
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "token",
			Usage: "issue a signed token",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "sub", Value: "oracle", Usage: "token subject"},
				cli.StringFlag{Name: "role", Value: auth.RoleProvider, Usage: "randomness-provider, player or operator"},
			},
			Action: issueToken,
		},
		{
			Name:  "fulfill",
			Usage: "answer a randomness request",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "request", Usage: "request id to fulfill"},
				cli.StringSliceFlag{Name: "word", Usage: "random word (decimal or 0x hex); generated when omitted"},
				cli.StringFlag{Name: "via", Value: "http", Usage: "http or redis"},
				cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "raffle API base url"},
			},
			Action: fulfill,
		},
		{
			Name:  "ledger",
			Usage: "print recent payouts from the redis wallet",
			Flags: []cli.Flag{
				cli.Int64Flag{Name: "limit", Value: 20},
			},
			Action: ledger,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.RaffleConfig, error) {
	cfg, err := config.LoadRaffleConfig()
	if err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}
	return cfg, nil
}

func newIssuer(cfg *config.RaffleConfig) *auth.Issuer {
	a := cfg.Provider.Auth
	return auth.NewIssuer(a.Secret, a.Issuer, a.Duration)
}

func newRedis(cfg *config.RaffleConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func issueToken(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := newIssuer(cfg).Issue(c.String("sub"), c.String("role"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func fulfill(c *cli.Context) error {
	requestID := c.String("request")
	if requestID == "" {
		return cli.NewExitError("--request is required", 2)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	words := c.StringSlice("word")
	if len(words) == 0 {
		generated, err := randomness.NewWords(cfg.Provider.NumWords)
		if err != nil {
			return err
		}
		words = randomness.FormatWords(generated)
	} else if _, err := randomness.ParseWords(words); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch c.String("via") {
	case "redis":
		rdb := newRedis(cfg)
		defer rdb.Close()
		if err := randomnessRedis.PublishFulfillment(ctx, rdb, cfg.Provider.FulfillChannel, requestID, words); err != nil {
			return err
		}
		logger.InfoGlobal().Str("request_id", requestID).Strs("words", words).Msg("fulfillment published")
		return nil
	case "http":
		return postFulfillment(ctx, cfg, c.String("url"), requestID, words)
	default:
		return cli.NewExitError("--via must be http or redis", 2)
	}
}

func postFulfillment(ctx context.Context, cfg *config.RaffleConfig, baseURL, requestID string, words []string) error {
	token, err := newIssuer(cfg).Issue("raffle-ops", auth.RoleProvider)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]interface{}{
		"request_id":   requestID,
		"random_words": words,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/raffle/fulfillments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return cli.NewExitError(fmt.Sprintf("fulfillment rejected: %s %s", resp.Status, out), 1)
	}
	fmt.Println(string(out))
	return nil
}

func ledger(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rdb := newRedis(cfg)
	defer rdb.Close()

	payouts, err := walletModule.NewRedisService(rdb, cfg.Wallet.KeyPrefix).Ledger(context.Background(), c.Int64("limit"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payouts)
}
