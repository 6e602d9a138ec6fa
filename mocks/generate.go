package mocks

//go:generate mockgen -destination=./mock_marketdata.go -package=mocks github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider HistoricalBarClient,StreamClient
//go:generate mockgen -destination=./mock_sink.go -package=mocks github.com/ashourz/AlgoRoyale-sub002/internal/live/sink Sink
