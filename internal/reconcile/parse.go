// Package reconcile はストアから取得した一覧とローカルの下書きを突き合わせ、
// 検索・絞り込み・ソート済みの表示用一覧と集計値を生成する。
// すべての関数は入力スライスを変更しない純粋関数である。
package reconcile

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// leadingNumber は文字列先頭の10進数表現にマッチする。
// "100円" のように単位が後置された金額も先頭の数値として解釈する。
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount は金額文字列を数値として解釈する。
// 解釈できない値、空文字列、非有限値は0として扱い、エラーにはしない。
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		m := leadingNumber.FindString(s)
		if m == "" {
			return 0
		}
		f, err = strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// timestampLayouts はストアが返しうる日時表現。
// タイムゾーンなしの値はUTCとして解釈する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp は日時文字列を解釈する。
// 解釈できない値はゼロ時刻を返し、ソート上は最も古い値として扱われる。
func ParseTimestamp(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
