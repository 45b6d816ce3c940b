package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/PickFolio/pickfolio-go/internal/contest"
	"github.com/PickFolio/pickfolio-go/internal/domain"
)

func buildCreateRequest(name, start, end string, private bool, budget float64, maxPlayers int) (contest.CreateContestRequest, error) {
	var req contest.CreateContestRequest

	if name == "" {
		return req, fmt.Errorf("-name is required")
	}
	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return req, fmt.Errorf("invalid -start: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return req, fmt.Errorf("invalid -end: %w", err)
	}
	if !endTime.After(startTime) {
		return req, fmt.Errorf("-end must be after -start")
	}

	return contest.CreateContestRequest{
		Name:            name,
		IsPrivate:       private,
		StartTime:       startTime,
		EndTime:         endTime,
		VirtualBudget:   budget,
		MaxParticipants: maxPlayers,
	}, nil
}

func buildTransactionRequest(contestID, symbol, side string, qty int) (contest.TransactionRequest, error) {
	var req contest.TransactionRequest

	if contestID == "" {
		return req, fmt.Errorf("-contest is required")
	}
	if symbol == "" {
		return req, fmt.Errorf("-symbol is required")
	}
	if qty < 1 {
		return req, fmt.Errorf("-qty must be at least 1")
	}

	txType := domain.TransactionType(strings.ToUpper(side))
	if txType != domain.TransactionBuy && txType != domain.TransactionSell {
		return req, fmt.Errorf("-side must be BUY or SELL")
	}

	symbol = strings.ToUpper(symbol)
	if !strings.Contains(symbol, ".") {
		symbol += ".NS"
	}

	return contest.TransactionRequest{
		StockSymbol:     symbol,
		TransactionType: txType,
		Quantity:        qty,
	}, nil
}
