package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/selection"
)

// selectionScope - ключ выбора в сессионном хранилище
const selectionScope = "selectionCache"

// savedSelection - выбор между запусками: что было видно и что из этого отмечено
type savedSelection struct {
	Visible  []string `json:"visible"`
	Selected []string `json:"selected"`
}

// selectCmd показывает бесплатную страницу контактов и проверяет, можно ли открыть выбранные строки
// выбор живёт в сессии: новый фильтр пересекается с ним, как в таблице на экране
func selectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Pick rows from the free contact preview and check whether they can be unlocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.ContactFilter{PageRequest: model.PageRequest{Page: 1, Limit: selection.FreeTierRows}}
			filter.Search, _ = cmd.Flags().GetString("search")
			filter.Industry, _ = cmd.Flags().GetString("industry")
			filter.Country, _ = cmd.Flags().GetString("country")
			filter.JobTitle, _ = cmd.Flags().GetString("job-title")
			picks, _ := cmd.Flags().GetStringSlice("pick")
			unpicks, _ := cmd.Flags().GetStringSlice("unpick")
			toggles, _ := cmd.Flags().GetStringSlice("toggle")
			all, _ := cmd.Flags().GetBool("all")
			clear, _ := cmd.Flags().GetBool("clear")

			page, err := a.client().Contacts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			visible := make([]string, 0, len(page.Items))
			for _, c := range page.Items {
				visible = append(visible, c.ID.String())
			}

			// 1. Восстанавливаем прошлый выбор и пересекаем его с новой страницей
			saved := a.loadSelection()
			set := selection.New(saved.Visible)
			for _, id := range saved.Selected {
				set.Select(id)
			}
			set.SetVisible(visible)

			// 2. Изменения из флагов
			if clear {
				set.Clear()
			}
			if all {
				set.SelectAll()
			}
			for _, id := range picks {
				if !set.Select(id) {
					fmt.Fprintf(a.out, "skipping %s: not in the current results\n", id)
				}
			}
			for _, id := range unpicks {
				set.Deselect(id)
			}
			for _, id := range toggles {
				set.Toggle(id)
			}

			if err := a.saveSelection(savedSelection{Visible: visible, Selected: set.IDs()}); err != nil {
				return err
			}

			// 3. Вывод
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, c := range page.Items {
				mark := "[ ]"
				if set.Contains(c.ID.String()) {
					mark = "[x]"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n", mark, c.ID, c.FirstName, c.LastName, c.JobTitle, c.CompanyName)
			}
			tw.Flush()

			fmt.Fprintf(a.out, "%d of %d selected\n", set.Len(), len(visible))
			if set.AllVisibleSelected() {
				fmt.Fprintln(a.out, "all visible rows are selected")
			}
			if set.CanUnlock(selection.FreeTierRows) {
				fmt.Fprintln(a.out, "Unlock & Download is available: run `leadctl checkout` with the selected ids.")
			} else {
				fmt.Fprintf(a.out, "Select exactly %d rows to unlock.\n", selection.FreeTierRows)
			}
			return nil
		},
	}
	cmd.Flags().String("search", "", "free-text search")
	cmd.Flags().String("industry", "", "industry filter")
	cmd.Flags().String("country", "", "country filter")
	cmd.Flags().String("job-title", "", "job title filter")
	cmd.Flags().StringSlice("pick", nil, "row ids to select")
	cmd.Flags().StringSlice("unpick", nil, "row ids to deselect")
	cmd.Flags().StringSlice("toggle", nil, "row ids to toggle")
	cmd.Flags().Bool("all", false, "select every visible row")
	cmd.Flags().Bool("clear", false, "drop the current selection first")
	return cmd
}

// loadSelection читает выбор из сессии; битая запись считается пустой
func (a *app) loadSelection() savedSelection {
	var saved savedSelection
	raw, ok := a.sessionStore().Get(selectionScope)
	if !ok {
		return saved
	}
	if err := json.Unmarshal(raw, &saved); err != nil {
		a.log.Debug("discarding malformed selection", slog.String("error", err.Error()))
		_ = a.sessionStore().Delete(selectionScope)
		return savedSelection{}
	}
	return saved
}

func (a *app) saveSelection(saved savedSelection) error {
	raw, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := a.sessionStore().Set(selectionScope, raw); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}
