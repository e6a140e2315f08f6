package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

const baseURL = "http://localhost:8080/api"

type WatchPair struct {
	ID    int64  `json:"id"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type Alert struct {
	ID        int64   `json:"id"`
	Base      string  `json:"base"`
	Quote     string  `json:"quote"`
	Threshold float64 `json:"threshold"`
	Direction string  `json:"direction"`
	Repeating bool    `json:"repeating"`
}

type Price struct {
	Pair struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
	} `json:"pair"`
	Price float64 `json:"price"`
	Stale bool    `json:"stale"`
}

func main() {
	for _, pair := range [][2]string{{"BTC", "USD"}, {"ETH", "USD"}, {"SOL", "USD"}} {
		wp := addWatchPair(pair[0], pair[1])
		fmt.Printf("Watching %s-%s (id=%d)\n", wp.Base, wp.Quote, wp.ID)
	}

	alerts := []Alert{
		{Base: "BTC", Quote: "USD", Threshold: 100000, Direction: "above"},
		{Base: "BTC", Quote: "USD", Threshold: 60000, Direction: "below", Repeating: true},
		{Base: "ETH", Quote: "USD", Threshold: 5000, Direction: "above"},
	}
	for _, a := range alerts {
		created := createAlert(a)
		fmt.Printf("Alert %d: %s-%s %s %.0f\n", created.ID, created.Base, created.Quote, created.Direction, created.Threshold)
	}

	price := getPrice("BTC", "USD")
	fmt.Printf("BTC-USD = %.2f (stale=%v)\n", price.Price, price.Stale)
}

func addWatchPair(base, quote string) WatchPair {
	var out WatchPair
	post("/watchlist", map[string]string{"base": base, "quote": quote}, &out)
	return out
}

func createAlert(alert Alert) Alert {
	var out Alert
	post("/alerts", alert, &out)
	return out
}

func getPrice(base, quote string) Price {
	resp, err := http.Get(fmt.Sprintf("%s/prices/%s/%s", baseURL, base, quote))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var out Price
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatal(err)
	}
	return out
}

func post(path string, body any, out any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Fatalf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatal(err)
	}
}
