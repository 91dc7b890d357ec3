package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session level messages (info)
		"Opening %s":                          "%s を開いています",
		"Duration %s, %d channels at %d Hz":   "長さ %s, %d チャンネル %d Hz",
		"No audio stream, playing video only": "音声ストリームがないため映像のみ再生します",
		"Seeking to %s":                       "%s へシークしています",
		"Playback started":                    "再生を開始しました",
		"Playback finished":                   "再生が終了しました",
		"Reached playback limit at %s":        "再生上限 %s に達しました",
		"Restarting playback (%d)":            "再生を先頭からやり直します (%d)",
		"Session ended after %s":              "セッションは %s で終了しました",
		"Interrupted, shutting down...":       "中断されました。シャットダウン中...",

		// Audio output
		"Audio output faulted, reopening": "音声出力に障害が発生したため再オープンします",

		// Errors
		"Failed to open %s: %s":            "%s を開けませんでした: %s",
		"Failed to open audio output: %s":  "音声出力を開けませんでした: %s",
		"Failed to start audio output: %s": "音声出力を開始できませんでした: %s",
		"Failed to close audio output: %s": "音声出力を閉じられませんでした: %s",
	})
}
