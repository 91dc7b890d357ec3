// Package main provides localization for the replayclipper CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Play and inspect video clips":         "動画クリップの再生と確認",
		"YAML configuration file":              "YAML設定ファイル",
		"Log level (debug, info, warn, error)": "ログレベル (debug, info, warn, error)",
		"Suppress all log output":              "ログ出力をすべて抑制",
		"Show version information":             "バージョン情報を表示",
		"replayclipper version %s":             "replayclipper バージョン %s",

		// Play command
		"Play a video file": "動画ファイルを再生",
		"Start position":    "開始位置",
		"Stop after this much media time (0 plays to the end)": "指定したメディア時間で停止 (0 で最後まで再生)",
		"Output volume (overrides config)":                     "出力音量 (設定を上書き)",
		"Audio device: beep or null (overrides config)":        "音声デバイス: beep または null (設定を上書き)",
		"Output width (overrides config)":                      "出力の幅 (設定を上書き)",
		"Output height (overrides config)":                     "出力の高さ (設定を上書き)",
		"Directory for PNG snapshots":                          "PNGスナップショットの保存先ディレクトリ",
		"Write a Markdown playback summary to this file":       "Markdown形式の再生サマリーをこのファイルに出力",
		"Restart from the beginning when playback ends":        "再生終了時に先頭から再生し直す",
		"play requires exactly one FILE":                       "play には FILE を1つだけ指定してください",
		"Failed to write summary: %s":                          "サマリーを書き出せませんでした: %s",
		"Summary written to %s":                                "サマリーを %s に保存しました",
		"Could not probe %s: %s":                               "%s を解析できませんでした: %s",
		"Frames":                                               "フレーム",
		"Wall time":                                            "経過時間",

		// Probe command
		"Show container metadata without decoding": "デコードせずにコンテナのメタデータを表示",
		"probe requires at least one FILE":         "probe には FILE を1つ以上指定してください",
		"%d of %d files could not be probed":       "%d / %d ファイルを解析できませんでした",
		" (%d keyframes)":                          " (キーフレーム %d)",

		// List command
		"List playable files under a directory": "ディレクトリ内の再生可能なファイルを一覧表示",
		"No media files in %s":                  "%s にメディアファイルはありません",
		"%d files":                              "%d ファイル",

		// Summary
		"Playback Summary":           "再生サマリー",
		"Session":                    "セッション",
		"Generated":                  "生成日時",
		"Media":                      "メディア",
		"Item":                       "項目",
		"Value":                      "値",
		"File":                       "ファイル",
		"Container":                  "コンテナ",
		"Duration":                   "長さ",
		"Video":                      "映像",
		"Audio":                      "音声",
		"Keyframes":                  "キーフレーム",
		"N/A":                        "なし",
		"Playback":                   "再生",
		"Frames Presented":           "表示フレーム数",
		"Audio Buffers":              "音声バッファ数",
		"Scrubs":                     "シーク回数",
		"Underruns":                  "アンダーラン",
		"Restarts":                   "再開回数",
		"Position":                   "再生位置",
		"Wall Time":                  "経過時間",
		"Average FPS":                "平均FPS",
		"Status":                     "状態",
		"Stopped":                    "停止",
		"Completed":                  "完了",
		"Settings":                   "設定",
		"Pool Size":                  "プールサイズ",
		"Volume":                     "音量",
		"Tick Rate":                  "ティックレート",
		"Max Steps per Tick":         "ティックあたり最大ステップ数",
		"Audio Device":               "音声デバイス",
		"Loop":                       "ループ",
		"Yes":                        "はい",
		"No":                         "いいえ",
		"Generated by replayclipper": "replayclipper により生成",
	})
}
