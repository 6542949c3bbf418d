// Copyright © 2022 Meroxa, Inc & Yalantis.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/conduitio-labs/conduit-connector-influxdb/client"
	"github.com/conduitio-labs/conduit-connector-influxdb/sink"
	"github.com/conduitio-labs/conduit-connector-influxdb/source"
	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
)

const (
	envPrefix = "INFLUXPOLL"

	keyLogLevel     = "log.level"
	keySinkType     = "sink.type"
	keyKafkaBrokers = "sink.kafka.brokers"
	keyKafkaTopic   = "sink.kafka.topic"

	sinkStdout = "stdout"
	sinkKafka  = "kafka"

	closeTimeout = 30 * time.Second
)

var errUnknownSink = errors.New("unknown sink")

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "influxpoll",
		Short: "Poll InfluxDB incrementally and emit new rows",
		Long: `influxpoll repeatedly queries an InfluxDB 1.x database for rows newer than the
last seen incremental key, emits them as delimited text records and keeps the key
in a status file so a restart resumes where the previous run stopped.

Connector keys (connection.url, table, custom.query, ...) are read from the config
file and from INFLUXPOLL_* environment variables, e.g. INFLUXPOLL_CONNECTION_URL.

Examples:
  influxpoll --config influxdb.properties
  influxpoll --config influxdb.yaml --sink kafka --kafka-brokers localhost:9092 --kafka-topic cpu`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, cmd.ErrOrStderr(), cmd.OutOrStdout())
		},
	}

	var configFile string

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (properties, yaml, toml or json)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn or error")
	flags.String("sink", sinkStdout, "where records are delivered: stdout or kafka")
	flags.StringSlice("kafka-brokers", []string{"localhost:9092"}, "kafka seed brokers")
	flags.String("kafka-topic", "influxdb", "kafka topic")

	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(keySinkType, flags.Lookup("sink"))
	_ = v.BindPFlag(keyKafkaBrokers, flags.Lookup("kafka-brokers"))
	_ = v.BindPFlag(keyKafkaTopic, flags.Lookup("kafka-topic"))

	cmd.PreRunE = func(*cobra.Command, []string) error {
		return initViper(v, configFile)
	}

	return cmd
}

// initViper reads the config file, when one is given, under INFLUXPOLL_* environment overrides.
func initViper(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}

	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", configFile, err)
	}

	return nil
}

func run(ctx context.Context, v *viper.Viper, logOut, recordOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(logOut, v.GetString(keyLogLevel))
	if err != nil {
		return err
	}

	cfg, err := source.Parse(settings(v))
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	ctx, stop := signal.NotifyContext(logger.WithContext(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := newSink(v, recordOut)
	if err != nil {
		return err
	}

	q, err := client.New(client.Params{
		URL:      cfg.URL,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		Timeout:  cfg.QueryTimeout,
	})
	if err != nil {
		return multierr.Append(fmt.Errorf("create querier: %w", err), ch.Close(ctx))
	}

	p, err := source.NewPoller(ctx, cfg, q, ch, false)
	if err != nil {
		return multierr.Combine(fmt.Errorf("create poller: %w", err), q.Close(), ch.Close(ctx))
	}

	logger.Info().Str("source", cfg.SourceName).Str("url", cfg.URL).Msg("polling started")

	if err = p.Run(ctx); err != nil {
		return fmt.Errorf("run poller: %w", err)
	}

	closeCtx, cancel := context.WithTimeout(logger.WithContext(context.Background()), closeTimeout)
	defer cancel()

	if err = p.Close(closeCtx); err != nil {
		return fmt.Errorf("close poller: %w", err)
	}

	logger.Info().Msg("polling stopped")

	return nil
}

// settings collects connector keys from every viper source into a flat map.
func settings(v *viper.Viper) map[string]string {
	keys := make([]string, 0)
	for key := range source.New().Parameters() {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	cfg := make(map[string]string, len(keys))

	for _, key := range keys {
		if value := v.GetString(key); value != "" {
			cfg[key] = value
		}
	}

	return cfg
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger(), nil
}

// channel is a sink that owns a connection or buffer to release.
type channel interface {
	emitter.Channel
	Close(ctx context.Context) error
}

func newSink(v *viper.Viper, out io.Writer) (channel, error) {
	switch kind := v.GetString(keySinkType); kind {
	case sinkStdout, "":
		return sink.NewWriter(out), nil
	case sinkKafka:
		k, err := sink.NewKafka(v.GetStringSlice(keyKafkaBrokers), v.GetString(keyKafkaTopic))
		if err != nil {
			return nil, fmt.Errorf("create kafka sink: %w", err)
		}

		return k, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSink, kind)
	}
}
