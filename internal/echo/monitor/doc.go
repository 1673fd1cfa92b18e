// Package monitor renders detection results for inspection: static PNG
// plots through gonum/plot and debug HTML charts through go-echarts, plus
// the HTTP handlers that serve them from the detections database.
package monitor
