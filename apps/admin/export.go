package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/task"
	exportsvc "github.com/trezcool/hackcamp/services/export"
)

// export writes every application or submission, optionally filtered by status, to an .xlsx file.
func (cli *commandLine) export(what, path, status string) (err error) {
	ctx := context.Background()
	var statuses []string
	if status != "" {
		statuses = []string{status}
	}

	var write func(f *os.File) (int, error)
	switch what {
	case "applications":
		if status != "" && !core.ContainsString(application.Statuses, status) {
			return errors.Errorf("unknown application status %q", status)
		}
		write = func(f *os.File) (int, error) {
			apps, _, err := cli.appSvc.Query(ctx, &application.QueryFilter{Statuses: statuses},
				[]core.DBOrdering{{Field: "created_at", Ascending: true}}, core.Pagination{})
			if err != nil {
				return 0, err
			}
			return len(apps), exportsvc.Applications(f, apps)
		}
	case "submissions":
		if status != "" && !core.ContainsString(task.SubmissionStatuses, status) {
			return errors.Errorf("unknown submission status %q", status)
		}
		write = func(f *os.File) (int, error) {
			subs, _, err := cli.taskSvc.QuerySubmissions(ctx, &task.SubmissionFilter{Statuses: statuses}, nil, core.Pagination{})
			if err != nil {
				return 0, err
			}
			return len(subs), exportsvc.Submissions(f, subs)
		}
	default:
		cli.printUsage()
		return errHelp
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	n, err := write(f)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", what)
	}
	fmt.Fprintf(cli.out, "%d %s exported to %s\n", n, what, path)
	return nil
}
