package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// seedShopProject builds the conventional Django layout the diagnosers
// reason about: a config package holding settings and the root router,
// and one application package named shop.
func seedShopProject(t *testing.T) (*fs.MockFS, *Planner) {
	t.Helper()
	mfs := fs.NewMockFS()
	mfs.Seed("manage.py", "#!/usr/bin/env python\n")
	mfs.Seed("config/settings.py", "ROOT_URLCONF = 'config.urls'\nINSTALLED_APPS = ['shop']\n")
	mfs.Seed("config/urls.py", "from django.urls import include, path\n\nurlpatterns = [\n    path('shop/', include('shop.urls', namespace='shop')),\n]\n")
	mfs.Seed("shop/apps.py", "from django.apps import AppConfig\n")
	mfs.Seed("shop/views.py", "def product_list(request):\n    pass\n")
	mfs.Seed("shop/models.py", "class Product:\n    pass\n")
	mfs.Seed("shop/urls.py", "from django.urls import path\nfrom . import views\n\nurlpatterns = [\n    path('', views.product_list, name='list'),\n]\n")
	mfs.Seed("shop/tests.py", "class CartTest:\n    pass\n")
	mfs.Seed("shop/templates/shop/list.html", "<html></html>\n")
	state := NewProjectState(mfs, nil)
	return mfs, New(state)
}

func routingErr(message string) *remedy.ErrorRecord {
	return &remedy.ErrorRecord{
		Kind:        remedy.KindRouting,
		Message:     message,
		Summary:     message,
		Command:     "python manage.py test",
		FilePath:    "shop/views.py",
		AutoFixable: true,
	}
}

func TestPlanRoutingNamespaceDiagnosis(t *testing.T) {
	ctx := context.Background()
	_, p := seedShopProject(t)

	// The app router exists and is included, but declares no app_name.
	err := routingErr("django.urls.exceptions.NoReverseMatch: Reverse for 'shop:checkout' not found. 'checkout' is not a valid view function or pattern name.")
	tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
	require.Len(t, tasks, 1)

	task, ok := tasks[0].(*remedy.FixLogicTask)
	require.True(t, ok, "routing failures should become a logic fix, got %T", tasks[0])
	assert.Contains(t, task.Files, "shop/urls.py")
	assert.Contains(t, task.Files, "config/urls.py")
	assert.Contains(t, task.Description, "declares no namespace")
	assert.Contains(t, task.Description, "app_name = 'shop'")
}

func TestPlanRoutingFailureModes(t *testing.T) {
	ctx := context.Background()

	t.Run("app router not included", func(t *testing.T) {
		mfs, p := seedShopProject(t)
		mfs.Seed("config/urls.py", "urlpatterns = []\n")
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			routingErr("Reverse for 'shop:list' not found."),
		})
		require.Len(t, tasks, 1)
		assert.Contains(t, tasks[0].Describe(), "does not include shop.urls")
	})

	t.Run("route name missing from app router", func(t *testing.T) {
		mfs, p := seedShopProject(t)
		mfs.Seed("shop/urls.py", "app_name = 'shop'\nurlpatterns = []\n")
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			routingErr("Reverse for 'shop:checkout' not found."),
		})
		require.Len(t, tasks, 1)
		assert.Contains(t, tasks[0].Describe(), `"checkout" is missing from shop/urls.py`)
	})

	t.Run("misspelled namespace is fuzzy-matched", func(t *testing.T) {
		_, p := seedShopProject(t)
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			routingErr("'shoppe' is not a registered namespace"),
		})
		require.Len(t, tasks, 1)
		assert.Contains(t, tasks[0].Describe(), "misspelling")
		assert.Contains(t, tasks[0].Describe(), `"shop"`)
	})

	t.Run("rendering template joins the file set", func(t *testing.T) {
		mfs, p := seedShopProject(t)
		mfs.Seed("shop/templates/shop/detail.html", "{% url 'shop:checkout' %}\n")
		msg := "Error during template rendering\nIn template shop/templates/shop/detail.html, error at line 1\nReverse for 'shop:checkout' not found."
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{routingErr(msg)})
		require.Len(t, tasks, 1)
		assert.Contains(t, tasks[0].TargetFiles(), "shop/templates/shop/detail.html")
	})

	t.Run("unresolvable namespace falls back to bundling", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := routingErr("Reverse for 'warehouse:pick' not found.")
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		// No app resembles "warehouse"; the record keeps its file and
		// goes through the standalone fallback.
		assert.Equal(t, []string{"shop/views.py"}, tasks[0].TargetFiles())
		assert.NotContains(t, tasks[0].Describe(), "namespace")
	})
}

func TestPlanMissingTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("app template with a known view", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindMissingResource,
			Summary:     "missing template: shop/detail.html",
			Message:     "django.template.exceptions.TemplateDoesNotExist: shop/detail.html",
			FilePath:    "shop/detail.html",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)

		task, ok := tasks[0].(*remedy.FixLogicTask)
		require.True(t, ok, "a known referencing view widens the task to both files")
		assert.Equal(t, []string{"shop/templates/shop/detail.html", "shop/views.py"}, task.Files)
		assert.Contains(t, task.Description, "create it at shop/templates/shop/detail.html")
		assert.Contains(t, task.Description, "correct the template reference in shop/views.py")
	})

	t.Run("project-level template with no view", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindMissingResource,
			Summary:     "missing template: checkout.html",
			Message:     "TemplateDoesNotExist: checkout.html",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)

		task, ok := tasks[0].(*remedy.CreateResourceTask)
		require.True(t, ok)
		assert.Equal(t, "templates/checkout.html", task.Path)
	})
}

func TestPlanAssertionPairsTestWithAppFile(t *testing.T) {
	ctx := context.Background()
	_, p := seedShopProject(t)

	err := &remedy.ErrorRecord{
		Kind:        remedy.KindTestFailure,
		FilePath:    "shop/tests.py",
		Message:     "AssertionError: 4 != 5",
		Summary:     "AssertionError: 4 != 5",
		TestContext: "shop.tests.CartTest.test_total",
		AutoFixable: true,
	}
	tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
	require.Len(t, tasks, 1)

	task, ok := tasks[0].(*remedy.FixLogicTask)
	require.True(t, ok)
	assert.Equal(t, []string{"shop/tests.py", "shop/views.py"}, task.Files)
	assert.Contains(t, task.Description, "including the test")

	t.Run("message about models redirects the pairing", func(t *testing.T) {
		_, p := seedShopProject(t)
		modelErr := err.WithFile("shop/tests.py")
		modelErr.Message = "AssertionError: Cart model total is wrong"
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{modelErr})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/tests.py", "shop/models.py"}, tasks[0].TargetFiles())
	})
}

func TestPlanStrMismatchScopesToModels(t *testing.T) {
	ctx := context.Background()
	_, p := seedShopProject(t)

	err := &remedy.ErrorRecord{
		Kind:        remedy.KindTestFailure,
		FilePath:    "shop/tests.py",
		Message:     "AssertionError: '<Product object (1)>' != 'Wrench'",
		Summary:     "AssertionError: '<Product object (1)>' != 'Wrench'",
		TestContext: "shop.tests.ProductTest.test_name",
		AutoFixable: true,
	}
	tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
	require.Len(t, tasks, 1)

	task, ok := tasks[0].(*remedy.FixLogicTask)
	require.True(t, ok)
	assert.Equal(t, []string{"shop/models.py"}, task.Files,
		"a default-repr mismatch is a models.py fix, never a test edit")
	assert.Contains(t, task.Description, "__str__")
	assert.Contains(t, task.Description, "Product")
	assert.Contains(t, task.Description, "Do not modify the test")
}

func TestPlanMissingAttribute(t *testing.T) {
	ctx := context.Background()

	t.Run("missing view handler emits the full chain", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindLogic,
			Message:     "AttributeError: module 'shop.views' has no attribute 'checkout'",
			Summary:     "AttributeError: module 'shop.views' has no attribute 'checkout'",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 3, "handler, app router and root router each get a task")
		assert.Equal(t, []string{"shop/views.py"}, tasks[0].TargetFiles())
		assert.Equal(t, []string{"shop/urls.py"}, tasks[1].TargetFiles())
		assert.Equal(t, []string{"config/urls.py"}, tasks[2].TargetFiles())
		assert.Contains(t, tasks[1].Describe(), "app_name = 'shop'")
	})

	t.Run("non-view module gets a single task", func(t *testing.T) {
		mfs, p := seedShopProject(t)
		mfs.Seed("shop/pricing.py", "TAX = 0.2\n")
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindLogic,
			Message:     "AttributeError: module 'shop.pricing' has no attribute 'compute_tax'",
			Summary:     "AttributeError: module 'shop.pricing' has no attribute 'compute_tax'",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/pricing.py"}, tasks[0].TargetFiles())
		assert.Contains(t, tasks[0].Describe(), "compute_tax")
	})
}

func TestPlanImportNameTargetsExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("module exporter", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindLogic,
			Message:     "ImportError: cannot import name 'Cart' from 'shop.models'",
			Summary:     "ImportError: cannot import name 'Cart' from 'shop.models'",
			FilePath:    "shop/views.py",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/models.py"}, tasks[0].TargetFiles(),
			"the fix belongs in the exporting module, not the importer")
		assert.Contains(t, tasks[0].Describe(), "do not change the importing file")
	})

	t.Run("package exporter resolves to __init__", func(t *testing.T) {
		mfs, p := seedShopProject(t)
		mfs.Seed("shop/__init__.py", "")
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindLogic,
			Message:     "ImportError: cannot import name 'signals' from 'shop'",
			Summary:     "ImportError: cannot import name 'signals' from 'shop'",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/__init__.py"}, tasks[0].TargetFiles())
	})
}

func TestPlanTestRedirect(t *testing.T) {
	ctx := context.Background()

	t.Run("status code failures point at views", func(t *testing.T) {
		_, p := seedShopProject(t)
		msg := "Traceback (most recent call last):\n" +
			`  File "shop/tests.py", line 12, in test_list` + "\n" +
			"    self.assertEqual(response.status_code, 200)\n" +
			"AssertionError: 404 != 200"
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindTestFailure,
			FilePath:    "shop/tests.py",
			Message:     msg,
			Summary:     "AssertionError: 404 != 200",
			TestContext: "shop.tests.ListTest.test_list",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/views.py"}, tasks[0].TargetFiles())
		assert.Contains(t, tasks[0].Describe(), "Do not modify shop/tests.py")
	})

	t.Run("asset assertions point at the template", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := &remedy.ErrorRecord{
			Kind:        remedy.KindTestFailure,
			FilePath:    "shop/tests.py",
			Message:     `AssertionError: False is not true : Couldn't find 'href="/static/css/shop.css"' in response (assertContains)`,
			Summary:     "missing stylesheet link",
			AutoFixable: true,
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/templates/shop/list.html"}, tasks[0].TargetFiles())
	})

	t.Run("failures sharing a fix file collapse", func(t *testing.T) {
		_, p := seedShopProject(t)
		mk := func(summary string) *remedy.ErrorRecord {
			return &remedy.ErrorRecord{
				Kind:        remedy.KindTestFailure,
				FilePath:    "shop/tests.py",
				Message:     "AssertionError: response.status_code mismatch: " + summary,
				Summary:     summary,
				AutoFixable: true,
			}
		}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{mk("404 != 200"), mk("500 != 200")})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"shop/views.py"}, tasks[0].TargetFiles())
		assert.Contains(t, tasks[0].Describe(), "2 test failure(s)")
	})
}

func TestPlanBundling(t *testing.T) {
	ctx := context.Background()

	plain := func(kind remedy.ErrorKind, file, summary string) *remedy.ErrorRecord {
		return &remedy.ErrorRecord{
			Kind:        kind,
			FilePath:    file,
			Summary:     summary,
			Message:     summary,
			Command:     "python manage.py test",
			AutoFixable: true,
		}
	}

	t.Run("several errors on one file collapse to a bundle", func(t *testing.T) {
		_, p := seedShopProject(t)
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			plain(remedy.KindLogic, "shop/views.py", "NameError: name 'price' is not defined"),
			plain(remedy.KindLogic, "shop/views.py", "NameError: name 'qty' is not defined"),
		})
		require.Len(t, tasks, 1)
		bundle, ok := tasks[0].(*remedy.BundleTask)
		require.True(t, ok)
		assert.Equal(t, "shop/views.py", bundle.Path)
		assert.Len(t, bundle.Errs, 2)
	})

	t.Run("single syntax error stays standalone", func(t *testing.T) {
		_, p := seedShopProject(t)
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			plain(remedy.KindSyntax, "shop/models.py", "SyntaxError: invalid syntax"),
		})
		require.Len(t, tasks, 1)
		task, ok := tasks[0].(*remedy.FixSyntaxTask)
		require.True(t, ok)
		assert.Equal(t, "shop/models.py", task.Path)
	})

	t.Run("fileless command failure becomes a command fix", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := plain(remedy.KindCommand, "", "command not found: pyton")
		err.Command = "pyton manage.py test"
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		task, ok := tasks[0].(*remedy.FixCommandTask)
		require.True(t, ok)
		assert.Equal(t, "pyton manage.py test", task.BadCommand)
		assert.Equal(t, "sh -n -c %s", task.CheckCommand)
		assert.Empty(t, task.KnownFix)
	})

	t.Run("fileless schema failure carries the known fix", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := plain(remedy.KindMigration, "", "no such table: shop_product")
		err.Hints = &remedy.Hints{FixCommand: "python manage.py makemigrations && python manage.py migrate"}
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		require.Len(t, tasks, 1)
		task, ok := tasks[0].(*remedy.FixCommandTask)
		require.True(t, ok)
		assert.Equal(t, "python manage.py makemigrations && python manage.py migrate", task.KnownFix)
		assert.Equal(t, "python manage.py migrate --check", task.CheckCommand)
	})

	t.Run("settings sentinel resolves to the real settings file", func(t *testing.T) {
		_, p := seedShopProject(t)
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			plain(remedy.KindConfiguration, remedy.SettingsSentinel, "ImproperlyConfigured: INSTALLED_APPS mentions 'shopp'"),
		})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"config/settings.py"}, tasks[0].TargetFiles())
	})

	t.Run("non-auto-fixable errors produce no tasks", func(t *testing.T) {
		_, p := seedShopProject(t)
		err := plain(remedy.KindEnvironment, "", "permission denied: /etc/app.conf")
		err.AutoFixable = false
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{err})
		assert.Empty(t, tasks)
	})

	t.Run("opaque fileless error targets settings as a last resort", func(t *testing.T) {
		_, p := seedShopProject(t)
		tasks := p.CreatePlan(ctx, []*remedy.ErrorRecord{
			plain(remedy.KindUnknown, "", "something unexplained happened"),
		})
		require.Len(t, tasks, 1)
		assert.Equal(t, []string{"config/settings.py"}, tasks[0].TargetFiles())
		assert.Contains(t, tasks[0].Describe(), "no specific file could be identified")
	})
}

func TestProjectStateDiscovery(t *testing.T) {
	ctx := context.Background()
	mfs, p := seedShopProject(t)
	mfs.Seed("static/css/shop.css", "body {}\n")
	mfs.Seed("templates/base.html", "<html></html>\n")
	st := p.State()

	assert.Equal(t, []string{"shop"}, st.Apps(ctx),
		"templates, static and marker-less directories are not apps")
	assert.True(t, st.IsApp(ctx, "shop"))
	assert.False(t, st.IsApp(ctx, "config"))
	assert.Equal(t, "config/settings.py", st.SettingsPath(ctx))
	assert.Equal(t, "config/urls.py", st.RootURLsPath(ctx), "resolved from ROOT_URLCONF")
	assert.Equal(t, "shop/templates", st.TemplatesDir(ctx, "shop/detail.html"))
	assert.Equal(t, "templates", st.TemplatesDir(ctx, "checkout.html"))
}
